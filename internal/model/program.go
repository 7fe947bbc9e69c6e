package model

// SuiteType orders suites by playback priority. The ordinal matters:
// a lower value loses to a higher one when playlists compete for a
// transmitter group.
type SuiteType int

const (
	SuiteGeneral SuiteType = iota
	SuiteHigh
	SuiteExclusive
	SuiteInterrupt
)

func (t SuiteType) String() string {
	switch t {
	case SuiteGeneral:
		return "GENERAL"
	case SuiteHigh:
		return "HIGH"
	case SuiteExclusive:
		return "EXCLUSIVE"
	case SuiteInterrupt:
		return "INTERRUPT"
	}
	return "UNKNOWN"
}

// SuiteMessage is one ordered message-type membership within a suite.
type SuiteMessage struct {
	ID       int    `db:"id"       json:"id"`
	SuiteID  int    `db:"suite_id" json:"suite_id"`
	Position int    `db:"position" json:"position"`
	AfosID   string `db:"afos_id"  json:"afos_id"`

	MsgType *MessageType `db:"-" json:"msg_type,omitempty"`
}

// Suite is an ordered, prioritized collection of message types.
type Suite struct {
	ID   int       `db:"id"   json:"id"`
	Name string    `db:"name" json:"name"`
	Type SuiteType `db:"type" json:"type"`

	Messages []SuiteMessage `db:"-" json:"messages,omitempty"`
}

// ContainsAfosID reports whether the suite carries the message type.
func (s *Suite) ContainsAfosID(afosID string) bool {
	for _, sm := range s.Messages {
		if sm.AfosID == afosID {
			return true
		}
	}
	return false
}

// ProgramSuite joins a program to a suite, carrying the position, the
// administrative forced flag and the effective trigger set. A message
// type is a trigger only if listed here for this {program, suite}
// pair, never from a flag on the message type itself.
type ProgramSuite struct {
	ID        int  `db:"id"         json:"id"`
	ProgramID int  `db:"program_id" json:"program_id"`
	SuiteID   int  `db:"suite_id"   json:"suite_id"`
	Position  int  `db:"position"   json:"position"`
	Forced    bool `db:"forced"     json:"forced"`

	Suite          *Suite   `db:"-" json:"suite,omitempty"`
	TriggerAfosIDs []string `db:"-" json:"trigger_afos_ids,omitempty"`
}

// IsTrigger reports whether the AFOS id is in the effective trigger
// set for this program/suite pair.
func (ps *ProgramSuite) IsTrigger(afosID string) bool {
	for _, id := range ps.TriggerAfosIDs {
		if id == afosID {
			return true
		}
	}
	return false
}

// Program owns the ordered suites assigned to one or more transmitter
// groups.
type Program struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`

	Suites            []*ProgramSuite `db:"-" json:"suites,omitempty"`
	TransmitterGroups []string        `db:"-" json:"transmitter_groups,omitempty"`
}

// ProgramSuiteFor returns the join entry for the named suite, or nil.
func (p *Program) ProgramSuiteFor(suiteName string) *ProgramSuite {
	for _, ps := range p.Suites {
		if ps.Suite != nil && ps.Suite.Name == suiteName {
			return ps
		}
	}
	return nil
}
