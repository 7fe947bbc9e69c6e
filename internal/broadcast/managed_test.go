package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type connSet map[string]bool

func (c connSet) IsConnected(group string) bool { return c[group] }

func TestGroupManagerClaims(t *testing.T) {
	m := NewGroupManager([]string{"OMA", "LNK", "GID"})

	mine := m.ClaimLocal(connSet{"OMA": true, "GID": true})
	assert.ElementsMatch(t, []string{"OMA", "GID"}, mine)
	assert.Equal(t, []string{"LNK"}, m.Unclaimed())
	assert.False(t, m.FullyClaimed())
	assert.Equal(t, StatusAvailable, m.Status("OMA"))
	assert.Equal(t, StatusUnknown, m.Status("LNK"))

	m.ClaimPeer([]string{"LNK", "OMA"})
	assert.True(t, m.FullyClaimed())
	assert.ElementsMatch(t, []string{"OMA", "GID"}, m.Mine(),
		"a peer claim never steals a locally claimed group")
}

func TestGroupManagerStatusTransitions(t *testing.T) {
	m := NewGroupManager([]string{"OMA", "LNK"})
	m.ClaimLocal(connSet{"OMA": true})
	m.ClaimPeer([]string{"LNK"})

	m.SetStatus("OMA", StatusReady)
	assert.Equal(t, StatusReady, m.Status("OMA"))

	m.SetStatusMine(StatusBusy)
	assert.Equal(t, StatusBusy, m.Status("OMA"))
	assert.Equal(t, StatusUnknown, m.Status("LNK"), "peer groups keep their own status")

	assert.Equal(t, StatusUnknown, m.Status("nope"))
}
