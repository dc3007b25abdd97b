// Package worldgen produces the deterministic height map a world's mirror
// document carries. The same seed always yields the same map, on every
// platform, so independently hydrating processes agree on terrain.
package worldgen

// Size is the edge length of a world's square height map.
const Size = 64

// HeightMap is a Size×Size grid of terrain heights in [0, 255].
type HeightMap [][]int

// splitmix-style integer hash; avoids floating point so results are
// bit-identical everywhere.
func hash(seed int64, x, y int) uint64 {
	h := uint64(seed) ^ uint64(uint32(x))*0x9e3779b97f4a7c15 ^ uint64(uint32(y))*0xbf58476d1ce4e5b9
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

func lattice(seed int64, x, y int) int {
	return int(hash(seed, x, y) & 0xff)
}

// sample interpolates the integer lattice at one cell for a given feature
// scale.
func sample(seed int64, x, y, scale int) int {
	x0, y0 := x/scale, y/scale
	fx, fy := x%scale, y%scale

	h00 := lattice(seed, x0, y0)
	h10 := lattice(seed, x0+1, y0)
	h01 := lattice(seed, x0, y0+1)
	h11 := lattice(seed, x0+1, y0+1)

	top := h00*(scale-fx) + h10*fx
	bottom := h01*(scale-fx) + h11*fx
	return (top*(scale-fy) + bottom*fy) / (scale * scale)
}

// Generate builds the height map for a seed: two octaves of interpolated
// lattice noise, coarse terrain plus fine detail.
func Generate(seed int64) HeightMap {
	hm := make(HeightMap, Size)
	for y := 0; y < Size; y++ {
		row := make([]int, Size)
		for x := 0; x < Size; x++ {
			coarse := sample(seed, x, y, 16)
			fine := sample(seed+1, x, y, 4)
			row[x] = (coarse*3 + fine) / 4
		}
		hm[y] = row
	}
	return hm
}
