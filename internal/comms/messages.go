// Package comms defines the JSON frame set spoken over the live
// broadcast sockets: client to comms manager, comms manager to DAC,
// and comms manager to comms manager across the cluster. Every frame
// is an Envelope carrying a type tag and the typed payload.
package comms

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// client -> server
	TypeStartLiveBroadcast = "START_LIVE_BROADCAST"
	TypeBroadcastAudio     = "BROADCAST_AUDIO"
	TypeLiveBroadcastStop  = "LIVE_BROADCAST_STOP"

	// server -> client
	TypeClientStatus = "LIVE_BROADCAST_CLIENT_STATUS"

	// server -> DAC
	TypePrepareLiveBroadcast = "PREPARE_LIVE_BROADCAST"
	TypeTriggerLiveBroadcast = "TRIGGER_LIVE_BROADCAST"
	TypeLiveBroadcastAudio   = "LIVE_BROADCAST_AUDIO"
	TypeStopLiveBroadcast    = "STOP_LIVE_BROADCAST"

	// DAC -> server
	TypeDACRegistration     = "DAC_REGISTRATION"
	TypeLiveBroadcastStatus = "LIVE_BROADCAST_STATUS"

	// cluster peer traffic
	TypeClusterHello      = "CLUSTER_HELLO"
	TypeGroupsClaim       = "LIVE_BROADCAST_GROUPS_CLAIM"
	TypeTransitionTrigger = "LIVE_BROADCAST_TRANSITION"
	TypeBroadcastStatus   = "LIVE_BROADCAST_STATUS_REPORT"
)

// Client status values.
const (
	ClientStatusReady  = "READY"
	ClientStatusFailed = "FAILED"
)

// Envelope is the outer frame for every message on every socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Pack wraps a payload in an envelope and serializes the whole frame.
func Pack(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("comms: marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Unpack parses a raw frame into its envelope.
func Unpack(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("comms: unreadable frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("comms: frame without type tag")
	}
	return env, nil
}

// Decode unmarshals the payload into the given message struct.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("comms: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// StartLiveBroadcastRequest opens a live session. The same frame is
// rebroadcast verbatim to cluster peers so they can claim the groups
// they reach.
type StartLiveBroadcastRequest struct {
	BroadcastID       string    `json:"broadcast_id"`
	Origin            string    `json:"origin"`
	TransmitterGroups []string  `json:"transmitter_groups"`
	MessageType       string    `json:"message_type"`
	SAMETone          string    `json:"same_tone,omitempty"`
	RequestTime       time.Time `json:"request_time"`
}

// BroadcastAudioRequest carries one audio chunk from the client.
type BroadcastAudioRequest struct {
	BroadcastID string `json:"broadcast_id"`
	Audio       []byte `json:"audio"`
}

// LiveBroadcastStopRequest ends a session normally.
type LiveBroadcastStopRequest struct {
	BroadcastID string `json:"broadcast_id"`
}

// LiveBroadcastClientStatus tells the requesting client whether its
// session is streaming or dead, with a human-readable detail on
// failure.
type LiveBroadcastClientStatus struct {
	BroadcastID string `json:"broadcast_id"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
}

// BroadcastStatus is a cluster member's report to the primary: a
// phase-readiness acknowledgment after a granted transition, or an
// unsolicited failure at any point in the session.
type BroadcastStatus struct {
	BroadcastID string `json:"broadcast_id"`
	Host        string `json:"host"`
	State       string `json:"state,omitempty"`
	Success     bool   `json:"success"`
	Detail      string `json:"detail,omitempty"`
}

// PrepareLiveBroadcastRequest readies one transmitter group's DAC for
// an imminent live stream.
type PrepareLiveBroadcastRequest struct {
	BroadcastID      string `json:"broadcast_id"`
	TransmitterGroup string `json:"transmitter_group"`
	MessageType      string `json:"message_type"`
	SAMETone         string `json:"same_tone,omitempty"`
}

// TriggerLiveBroadcast starts SAME tone playback on the DAC.
type TriggerLiveBroadcast struct {
	BroadcastID      string `json:"broadcast_id"`
	TransmitterGroup string `json:"transmitter_group"`
}

// LiveBroadcastAudioRequest relays one audio chunk to the DAC.
type LiveBroadcastAudioRequest struct {
	BroadcastID      string `json:"broadcast_id"`
	TransmitterGroup string `json:"transmitter_group"`
	Audio            []byte `json:"audio"`
}

// StopLiveBroadcastRequest tears the DAC side of a session down.
type StopLiveBroadcastRequest struct {
	BroadcastID      string `json:"broadcast_id"`
	TransmitterGroup string `json:"transmitter_group"`
}

// DACRegistration is the first frame on a DAC link, binding the
// connection to a transmitter group.
type DACRegistration struct {
	TransmitterGroup string `json:"transmitter_group"`
}

// LiveBroadcastStatus is the DAC's per-group acknowledgment of a
// prepare or trigger command, or an unsolicited mid-stream failure.
type LiveBroadcastStatus struct {
	BroadcastID      string `json:"broadcast_id"`
	TransmitterGroup string `json:"transmitter_group"`
	Ready            bool   `json:"ready"`
	Detail           string `json:"detail,omitempty"`
}

// ClusterHello identifies a peer connection; it is the first frame on
// every peer link in both directions.
type ClusterHello struct {
	Host string `json:"host"`
}

// GroupsClaim is a peer's answer to a rebroadcast session request,
// listing the requested groups that peer reaches directly.
type GroupsClaim struct {
	BroadcastID       string   `json:"broadcast_id"`
	Host              string   `json:"host"`
	TransmitterGroups []string `json:"transmitter_groups"`
}

// TransitionTrigger is the primary's permission for cluster members
// to advance their session state machines.
type TransitionTrigger struct {
	BroadcastID string `json:"broadcast_id"`
	State       string `json:"state"`
}
