package gateway

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fabriq-online/fabriq/packet"
)

func TestShouldDeliver(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		frameWorld   string
		sessionID    string
		sessionWorld string
		want         bool
	}{
		{"all reaches same world", packet.TargetAll, "w1", "s1", "w1", true},
		{"all skips other worlds", packet.TargetAll, "w1", "s1", "w2", false},
		{"world target reaches its sessions", "w1", "w1", "s1", "w1", true},
		{"world target skips other worlds", "w1", "w1", "s1", "w2", false},
		{"session target reaches that session", "s1", "w1", "s1", "w1", true},
		{"session target skips others", "s1", "w1", "s2", "w1", false},
		{"unknown target reaches nobody", "nobody", "w1", "s1", "w1", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldDeliver(tc.target, tc.frameWorld, tc.sessionID, tc.sessionWorld)
			assert.Equal(t, got, tc.want)
		})
	}
}

func TestInternalPacketsStayOffClients(t *testing.T) {
	assert.Assert(t, !ClientVisible(packet.TypeBuildingFinished))
	assert.Assert(t, ClientVisible(packet.TypeWorldBuilding))
	assert.Assert(t, ClientVisible(packet.TypePlayerMove))
}
