package notify

import "time"

// Inbound configuration / lifecycle events.

type SuiteConfigChanged struct {
	SuiteID int `json:"suite_id"`
}

type ProgramConfigChanged struct {
	ProgramID int `json:"program_id"`
}

type TransmitterGroupConfigChanged struct {
	Groups []string `json:"groups"`
}

type MessageActivationChanged struct {
	InputMessageIDs []int `json:"input_message_ids"`
	Active          bool  `json:"active"`
}

type MessageForcedExpiration struct {
	BroadcastIDs []int64 `json:"broadcast_ids"`
}

type ResetAll struct{}

// Outbound playlist / playback events.

type PlaylistUpdated struct {
	TransmitterGroup string    `json:"transmitter_group"`
	Suite            string    `json:"suite"`
	Priority         int       `json:"priority"`
	Path             string    `json:"path"`
	ModTime          time.Time `json:"mod_time"`
}

// MessagePlaybackPrediction is the scheduler's forecast for one
// message within the active playlist cycle.
type MessagePlaybackPrediction struct {
	BroadcastID      int64     `json:"broadcast_id"`
	NextTransmitTime time.Time `json:"next_transmit_time"`
	LastTransmitTime time.Time `json:"last_transmit_time"`
	PlayCount        int       `json:"play_count"`
	PlayedAlertTone  bool      `json:"played_alert_tone"`
	PlayedSameTone   bool      `json:"played_same_tone"`
	Dynamic          bool      `json:"dynamic"`
}

// PlaylistSwitch announces that a transmitter process switched to a
// different playlist; it carries the full prediction set for the new
// cycle.
type PlaylistSwitch struct {
	TransmitterGroup  string                      `json:"transmitter_group"`
	Suite             string                      `json:"suite"`
	PlaybackCycleTime int64                       `json:"playback_cycle_time"`
	Predictions       []MessagePlaybackPrediction `json:"predictions"`
}

// MessagePlaybackStatus reports a single message having been played.
type MessagePlaybackStatus struct {
	TransmitterGroup string    `json:"transmitter_group"`
	BroadcastID      int64     `json:"broadcast_id"`
	TransmitTime     time.Time `json:"transmit_time"`
	PlayCount        int       `json:"play_count"`
	PlayedAlertTone  bool      `json:"played_alert_tone"`
	PlayedSameTone   bool      `json:"played_same_tone"`
	Interrupt        bool      `json:"interrupt"`
}

// Live broadcast switch states.
const (
	LiveBroadcastStarted = "STARTED"
	LiveBroadcastEnded   = "ENDED"
)

// LiveBroadcastSwitch tells status consumers that a live stream has
// taken over (or released) a transmitter group.
type LiveBroadcastSwitch struct {
	TransmitterGroup string    `json:"transmitter_group"`
	BroadcastID      string    `json:"broadcast_id"`
	State            string    `json:"state"`
	TransitTime      time.Time `json:"transit_time"`
	MessageType      string    `json:"message_type"`
	SameTone         string    `json:"same_tone"`
}
