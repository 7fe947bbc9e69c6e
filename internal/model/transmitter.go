package model

// Transmitter is a single radio transmitter within a group.
type Transmitter struct {
	ID       int    `db:"id"       json:"id"`
	GroupID  int    `db:"group_id" json:"group_id"`
	Mnemonic string `db:"mnemonic" json:"mnemonic"`
	Enabled  bool   `db:"enabled"  json:"enabled"`
}

// TransmitterGroup is a set of transmitters that always broadcast
// identical content, addressed by name throughout the system.
type TransmitterGroup struct {
	ID        int    `db:"id"         json:"id"`
	Name      string `db:"name"       json:"name"`
	ProgramID *int   `db:"program_id" json:"program_id,omitempty"`
	Enabled   bool   `db:"enabled"    json:"enabled"`

	Transmitters []Transmitter `db:"-" json:"transmitters,omitempty"`
}

// HasTransmitter reports whether the group contains the transmitter.
func (g *TransmitterGroup) HasTransmitter(id int) bool {
	for _, t := range g.Transmitters {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Area is a SAME-addressable geographic area served by zero or more
// transmitters.
type Area struct {
	ID           int    `db:"id"        json:"id"`
	AreaCode     string `db:"area_code" json:"area_code"`
	Name         string `db:"name"      json:"name"`
	Transmitters []int  `db:"-"         json:"transmitters,omitempty"`
}

// ServesAnyOf reports whether the area is covered by any of the given
// transmitters.
func (a *Area) ServesAnyOf(transmitters []Transmitter) bool {
	for _, t := range transmitters {
		for _, id := range a.Transmitters {
			if t.ID == id {
				return true
			}
		}
	}
	return false
}

// Zone is a forecast zone that expands to a set of areas.
type Zone struct {
	ID       int    `db:"id"        json:"id"`
	ZoneCode string `db:"zone_code" json:"zone_code"`
	Name     string `db:"name"      json:"name"`
	Areas    []Area `db:"-"         json:"areas,omitempty"`
}
