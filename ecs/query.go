package ecs

// Query matches live entities holding every component it was defined with.
// Results are always in ascending id order. A query with no components never
// matches anything.
type Query struct {
	store  *Store
	mask   uint64
	empty  bool
	latest []EntityID
}

// DefineQuery builds a query over the component set. The query keeps a
// snapshot of its most recent result so Enter can report newly matching
// entities.
func (s *Store) DefineQuery(comps ...*Component) *Query {
	q := &Query{store: s, empty: len(comps) == 0}
	for _, c := range comps {
		q.mask |= c.mask()
	}
	return q
}

// Entities evaluates the query and returns the matching ids in ascending
// order. The result also becomes the query's latest snapshot.
func (q *Query) Entities() []EntityID {
	q.latest = q.collect()
	return q.latest
}

// Latest returns the snapshot from the most recent Entities or Enter call
// without re-evaluating.
func (q *Query) Latest() []EntityID { return q.latest }

// Enter re-evaluates the query and returns the ids present now but absent
// from the previous snapshot, in ascending order. An id that left and
// re-entered between calls is reported once.
func (q *Query) Enter() []EntityID {
	prev := make(map[EntityID]struct{}, len(q.latest))
	for _, id := range q.latest {
		prev[id] = struct{}{}
	}
	q.latest = q.collect()
	var entered []EntityID
	for _, id := range q.latest {
		if _, ok := prev[id]; !ok {
			entered = append(entered, id)
		}
	}
	return entered
}

func (q *Query) collect() []EntityID {
	if q.empty {
		return nil
	}
	var out []EntityID
	for i := 0; i < q.store.capacity; i++ {
		if q.store.live[i] && q.store.masks[i]&q.mask == q.mask {
			out = append(out, EntityID(i))
		}
	}
	return out
}
