package model

import (
	"strings"
	"time"
)

// Designation categorizes a message type. Routine designations
// (station id, time announcement) are excluded from forced-suite
// playlist window calculations.
type Designation string

const (
	DesignationStationID        Designation = "StationID"
	DesignationForecast         Designation = "Forecast"
	DesignationObservation      Designation = "Observation"
	DesignationOutlook          Designation = "Outlook"
	DesignationWatch            Designation = "Watch"
	DesignationWarning          Designation = "Warning"
	DesignationAdvisory         Designation = "Advisory"
	DesignationTimeAnnouncement Designation = "TimeAnnouncement"
	DesignationOther            Designation = "Other"
)

// IsStatic reports whether the designation is a routine broadcast that
// should not drive playlist start/expiration windows.
func (d Designation) IsStatic() bool {
	return d == DesignationStationID || d == DesignationTimeAnnouncement
}

// InputMessage is a raw received message. Immutable once validated
// except for the active flag.
type InputMessage struct {
	ID             int       `db:"id"              json:"id"`
	Name           string    `db:"name"            json:"name"`
	Language       string    `db:"language"        json:"language"`
	AfosID         string    `db:"afos_id"         json:"afos_id"`
	CreationTime   time.Time `db:"creation_time"   json:"creation_time"`
	EffectiveTime  time.Time `db:"effective_time"  json:"effective_time"`
	ExpirationTime time.Time `db:"expiration_time" json:"expiration_time"`
	Periodicity    string    `db:"periodicity"     json:"periodicity"`
	MRDRaw         string    `db:"mrd"             json:"mrd"`
	Active         bool      `db:"active"          json:"active"`
	Confirm        bool      `db:"confirm"         json:"confirm"`
	Interrupt      bool      `db:"interrupt"       json:"interrupt"`
	AlertTone      bool      `db:"alert_tone"      json:"alert_tone"`
	NWRSameTone    bool      `db:"nwr_same_tone"   json:"nwr_same_tone"`
	AreaCodes      string    `db:"area_codes"      json:"area_codes"`
	Content        string    `db:"content"         json:"content"`
}

// MRD parses the raw MRD field. A malformed field is treated as no
// directive at all.
func (m *InputMessage) MRD() MRD {
	mrd, err := ParseMRD(m.MRDRaw)
	if err != nil {
		return MRD{ID: NoMRDID}
	}
	return mrd
}

// AreaCodeList splits the UGC area code field.
func (m *InputMessage) AreaCodeList() []string {
	if m.AreaCodes == "" {
		return nil
	}
	return strings.Split(m.AreaCodes, "-")
}

// MessageType is catalog reference data keyed by AFOS id.
type MessageType struct {
	ID                int         `db:"id"                  json:"id"`
	AfosID            string      `db:"afos_id"             json:"afos_id"`
	Title             string      `db:"title"               json:"title"`
	Designation       Designation `db:"designation"         json:"designation"`
	Periodicity       string      `db:"periodicity"         json:"periodicity"`
	Voice             string      `db:"voice"               json:"voice"`
	ToneBlackoutStart string      `db:"tone_blackout_start" json:"tone_blackout_start"`
	ToneBlackoutEnd   string      `db:"tone_blackout_end"   json:"tone_blackout_end"`

	// AFOS ids of message types that messages of this type replace.
	ReplacementAfosIDs []string `db:"-" json:"replacement_afos_ids,omitempty"`
}

// BroadcastFragment is one synthesized audio unit of a broadcast
// message.
type BroadcastFragment struct {
	ID         int64  `db:"id"          json:"id"`
	Position   int    `db:"position"    json:"position"`
	SSML       string `db:"ssml"        json:"ssml"`
	OutputName string `db:"output_name" json:"output_name"`
	Success    bool   `db:"success"     json:"success"`
}

// BroadcastMsg is one transformed-and-synthesized message bound to a
// single transmitter group. Immutable except for status flags.
type BroadcastMsg struct {
	ID               int64     `db:"id"                json:"id"`
	CreationTime     time.Time `db:"creation_time"     json:"creation_time"`
	UpdateTime       time.Time `db:"update_time"       json:"update_time"`
	TransmitterGroup string    `db:"transmitter_group" json:"transmitter_group"`
	InputMessageID   int       `db:"input_message_id"  json:"input_message_id"`
	Success          bool      `db:"success"           json:"success"`
	PlayedInterrupt  bool      `db:"played_interrupt"  json:"played_interrupt"`
	PlayedAlertTone  bool      `db:"played_alert_tone" json:"played_alert_tone"`
	PlayedSameTone   bool      `db:"played_same_tone"  json:"played_same_tone"`
	ForcedExpiration bool      `db:"forced_expiration" json:"forced_expiration"`

	InputMessage *InputMessage       `db:"-" json:"input_message,omitempty"`
	Fragments    []BroadcastFragment `db:"-" json:"fragments,omitempty"`
}

// AfosID returns the AFOS id of the owning input message.
func (b *BroadcastMsg) AfosID() string {
	if b.InputMessage == nil {
		return ""
	}
	return b.InputMessage.AfosID
}

// Expired reports whether the message should no longer be broadcast at
// the given time.
func (b *BroadcastMsg) Expired(at time.Time) bool {
	if b.ForcedExpiration {
		return true
	}
	if b.InputMessage == nil {
		return true
	}
	return at.After(b.InputMessage.ExpirationTime)
}
