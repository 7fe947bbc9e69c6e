package model

import (
	"encoding/xml"
	"fmt"
	"time"
)

// DacPlaylist is the transmitter-facing projection of a playlist: an
// ordered list of message references plus trigger metadata. Message
// content travels separately as per-message metadata artifacts so the
// playlist file itself stays small.
type DacPlaylist struct {
	XMLName          xml.Name               `xml:"dacPlaylist"`
	Priority         int                    `xml:"priority,attr"`
	TransmitterGroup string                 `xml:"transmitterGroup,attr"`
	Suite            string                 `xml:"suite,attr"`
	CreationTime     time.Time              `xml:"creationTime,attr"`
	Start            time.Time              `xml:"start,attr"`
	Expired          time.Time              `xml:"expired,attr"`
	LatestTrigger    time.Time              `xml:"latestTrigger,attr"`
	Interrupt        bool                   `xml:"interrupt,attr"`
	Messages         []DacPlaylistMessageID `xml:"message"`
}

// DacPlaylistMessageID references one message by broadcast id and the
// update timestamp that keys its metadata artifact.
type DacPlaylistMessageID struct {
	BroadcastID int64     `xml:"broadcastId,attr"`
	UpdateTime  time.Time `xml:"updateTime,attr"`
}

// MetadataFileName is the idempotent cache key for the full metadata
// artifact: one file per distinct {broadcastId, updateTimestamp}.
func (id DacPlaylistMessageID) MetadataFileName() string {
	return fmt.Sprintf("%d_%d.xml", id.BroadcastID, id.UpdateTime.UnixMilli())
}

// DacPlaylistMessage is the full metadata record written once per
// distinct update timestamp for a message the transmitter has not yet
// seen.
type DacPlaylistMessage struct {
	XMLName           xml.Name  `xml:"dacPlaylistMessage"`
	BroadcastID       int64     `xml:"broadcastId"`
	MessageType       string    `xml:"messageType"`
	SoundFiles        []string  `xml:"soundFile"`
	Start             time.Time `xml:"start"`
	Expire            time.Time `xml:"expire"`
	Periodicity       string    `xml:"periodicity"`
	MessageText       string    `xml:"messageText"`
	SAMETone          string    `xml:"sameTone,omitempty"`
	AlertTone         bool      `xml:"alertTone"`
	Confirm           bool      `xml:"confirm"`
	ToneBlackoutStart string    `xml:"toneBlackoutStart,omitempty"`
	ToneBlackoutEnd   string    `xml:"toneBlackoutEnd,omitempty"`
}

// PlaylistFileName is the deterministic artifact name for a playlist
// update. The mod time keeps successive writes distinct while the
// priority and suite let the transmitter process pick the winner
// without parsing content.
func (d *DacPlaylist) PlaylistFileName() string {
	return fmt.Sprintf("%d_%s_%d.xml", d.Priority, d.Suite, d.CreationTime.UnixMilli())
}
