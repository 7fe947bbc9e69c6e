// Package broadcast runs live-broadcast sessions: one state-machine
// task per session, coordinated across comms manager processes so
// every transmitter group a session names is served by exactly one
// process and all of them trigger tone playback together.
package broadcast

import "sync"

// Responsibility records which process serves a transmitter group
// within one session.
type Responsibility int

const (
	ResponsibilityUnknown Responsibility = iota
	ResponsibilityMine
	ResponsibilityPeer
)

func (r Responsibility) String() string {
	switch r {
	case ResponsibilityMine:
		return "MINE"
	case ResponsibilityPeer:
		return "PEER"
	default:
		return "UNKNOWN"
	}
}

// StreamingStatus records how far a locally served group's DAC has
// come in the current session.
type StreamingStatus int

const (
	StatusUnknown StreamingStatus = iota
	StatusAvailable
	StatusReady
	StatusBusy
)

func (s StreamingStatus) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusReady:
		return "READY"
	case StatusBusy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// ManagedTransmitterGroup is one requested group's claim state within
// a session.
type ManagedTransmitterGroup struct {
	Name           string
	Responsibility Responsibility
	Status         StreamingStatus
}

// GroupManager tracks claim state for all transmitter groups one
// session requested. Safe for concurrent use: peer claims arrive from
// the cluster dispatch goroutine while the task goroutine reads.
type GroupManager struct {
	mu     sync.Mutex
	groups []*ManagedTransmitterGroup
}

func NewGroupManager(names []string) *GroupManager {
	m := &GroupManager{}
	for _, name := range names {
		m.groups = append(m.groups, &ManagedTransmitterGroup{Name: name})
	}
	return m
}

// ClaimLocal marks every group with a live local DAC connection as
// served by this process and returns their names.
func (m *GroupManager) ClaimLocal(dacs interface{ IsConnected(group string) bool }) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []string
	for _, g := range m.groups {
		if g.Responsibility == ResponsibilityUnknown && dacs.IsConnected(g.Name) {
			g.Responsibility = ResponsibilityMine
			g.Status = StatusAvailable
			mine = append(mine, g.Name)
		}
	}
	return mine
}

// SetStatus records the streaming status of one group.
func (m *GroupManager) SetStatus(name string, status StreamingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Name == name {
			g.Status = status
		}
	}
}

// SetStatusMine records the streaming status of every locally served
// group at once, on phase transitions that affect them all.
func (m *GroupManager) SetStatusMine(status StreamingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Responsibility == ResponsibilityMine {
			g.Status = status
		}
	}
}

// Status reports the streaming status of one group.
func (m *GroupManager) Status(name string) StreamingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Name == name {
			return g.Status
		}
	}
	return StatusUnknown
}

// ClaimPeer marks the named groups as served by a cluster peer. A
// group this process already claimed stays local.
func (m *GroupManager) ClaimPeer(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		for _, g := range m.groups {
			if g.Name == name && g.Responsibility == ResponsibilityUnknown {
				g.Responsibility = ResponsibilityPeer
			}
		}
	}
}

// Mine returns the groups this process serves.
func (m *GroupManager) Mine() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, g := range m.groups {
		if g.Responsibility == ResponsibilityMine {
			out = append(out, g.Name)
		}
	}
	return out
}

// Unclaimed returns the groups no process has claimed yet.
func (m *GroupManager) Unclaimed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, g := range m.groups {
		if g.Responsibility == ResponsibilityUnknown {
			out = append(out, g.Name)
		}
	}
	return out
}

// FullyClaimed reports whether every requested group has an owner.
func (m *GroupManager) FullyClaimed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Responsibility == ResponsibilityUnknown {
			return false
		}
	}
	return true
}
