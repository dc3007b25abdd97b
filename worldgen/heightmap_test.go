package worldgen_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/worldgen"
)

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	a := worldgen.Generate(42)
	b := worldgen.Generate(42)
	assert.DeepEqual(t, a, b)

	c := worldgen.Generate(43)
	same := true
	for y := range a {
		for x := range a[y] {
			if a[y][x] != c[y][x] {
				same = false
			}
		}
	}
	assert.Assert(t, !same, "different seeds should differ somewhere")
}

func TestGenerateStaysInRange(t *testing.T) {
	hm := worldgen.Generate(7)
	assert.Equal(t, worldgen.Size, len(hm))
	for _, row := range hm {
		assert.Equal(t, worldgen.Size, len(row))
		for _, h := range row {
			assert.Assert(t, h >= 0 && h <= 255)
		}
	}
}
