// Package gateway terminates client websockets and routes packet frames
// between the pub/sub bus and connected sessions.
package gateway

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/fabriq-online/fabriq/packet"
)

const writeDeadline = 5 * time.Second

// session is one connected client socket, pinned to the world it joined.
type session struct {
	id      string
	worldID string
	conn    *websocket.Conn
}

// sessionAndDone lets the caller block until the hub loop has applied a
// register or unregister.
type sessionAndDone struct {
	s    *session
	done chan bool
}

type outbound struct {
	target  string
	worldID string
	frame   []byte
}

// SessionHub owns every connected session. All session state lives inside
// the Run loop; callers talk to it over channels, so no lock guards the
// session map.
type SessionHub struct {
	sessions   map[string]*session
	register   chan sessionAndDone
	unregister chan sessionAndDone
	deliver    chan outbound
	getCount   chan chan int
	shutdown   chan bool
	stopped    chan struct{}
	isRunning  atomic.Bool
	log        zerolog.Logger
}

func NewSessionHub(log zerolog.Logger) *SessionHub {
	h := &SessionHub{
		sessions:   map[string]*session{},
		register:   make(chan sessionAndDone),
		unregister: make(chan sessionAndDone),
		deliver:    make(chan outbound),
		getCount:   make(chan chan int),
		shutdown:   make(chan bool),
		stopped:    make(chan struct{}),
		log:        log.With().Str("component", "session_hub").Logger(),
	}
	go h.Run()
	return h
}

// Register adds a session and blocks until the hub has it. Registering on a
// stopped hub is a no-op.
func (h *SessionHub) Register(sessionID, worldID string, conn *websocket.Conn) {
	done := make(chan bool)
	select {
	case h.register <- sessionAndDone{s: &session{id: sessionID, worldID: worldID, conn: conn}, done: done}:
		<-done
	case <-h.stopped:
	}
}

// Unregister removes a session and closes its socket. Unknown sessions and a
// stopped hub are a no-op.
func (h *SessionHub) Unregister(sessionID string) {
	done := make(chan bool)
	select {
	case h.unregister <- sessionAndDone{s: &session{id: sessionID}, done: done}:
		<-done
	case <-h.stopped:
	}
}

// Deliver hands a frame to every session the target addresses. Fire and
// forget: a session whose write fails is unregistered, not retried, and a
// frame delivered after Shutdown is dropped instead of blocking the caller.
func (h *SessionHub) Deliver(target, worldID string, frame []byte) {
	select {
	case h.deliver <- outbound{target: target, worldID: worldID, frame: frame}:
	case <-h.stopped:
	}
}

// SessionCount reports how many sessions are connected.
func (h *SessionHub) SessionCount() int {
	countChan := make(chan int)
	select {
	case h.getCount <- countChan:
		return <-countChan
	case <-h.stopped:
		return 0
	}
}

// Shutdown closes every session and stops the loop.
func (h *SessionHub) Shutdown() {
	h.shutdown <- true
	for h.isRunning.Load() {
		time.Sleep(10 * time.Millisecond)
	}
}

func (h *SessionHub) Run() {
	if h.isRunning.Load() {
		return
	}
	h.isRunning.Store(true)
	drop := func(s *session) {
		if _, ok := h.sessions[s.id]; !ok {
			return
		}
		delete(h.sessions, s.id)
		if err := eris.Wrap(s.conn.Close(), "close session socket"); err != nil {
			h.log.Error().Err(err).Str("session", s.id).Msg("failed to close session socket")
		}
	}
Loop:
	for {
		select {
		case countChan := <-h.getCount:
			countChan <- len(h.sessions)
		case reg := <-h.register:
			h.sessions[reg.s.id] = reg.s
			reg.done <- true
		case unreg := <-h.unregister:
			if s, ok := h.sessions[unreg.s.id]; ok {
				drop(s)
			}
			unreg.done <- true
		case out := <-h.deliver:
			var failed []*session
			for _, s := range h.sessions {
				if !ShouldDeliver(out.target, out.worldID, s.id, s.worldID) {
					continue
				}
				if err := s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
					h.log.Error().Err(eris.Wrap(err, "set write deadline")).
						Str("session", s.id).Msg("dropping session")
					failed = append(failed, s)
					continue
				}
				if err := s.conn.WriteMessage(websocket.TextMessage, out.frame); err != nil {
					h.log.Error().Err(eris.Wrap(err, "write frame")).
						Str("session", s.id).Msg("dropping session")
					failed = append(failed, s)
				}
			}
			for _, s := range failed {
				drop(s)
			}
		case <-h.shutdown:
			for _, s := range h.sessions {
				drop(s)
			}
			break Loop
		}
	}
	close(h.stopped)
	h.isRunning.Store(false)
}

// ShouldDeliver decides whether a frame addressed to target on a world's
// channel reaches the given session: "all" reaches every session of that
// world, a world id reaches that world's sessions, a session id reaches
// exactly that session.
func ShouldDeliver(target, frameWorld, sessionID, sessionWorld string) bool {
	switch target {
	case packet.TargetAll:
		return sessionWorld == frameWorld
	case sessionID:
		return true
	case sessionWorld:
		return true
	}
	return false
}
