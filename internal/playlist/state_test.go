package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/skylark/internal/notify"
)

func TestPlaylistDataUnknownGroupNeverNil(t *testing.T) {
	s := NewStateManager(newFakeStore())
	d := s.PlaylistData("NoSuchGroup")
	require.NotNil(t, d)
	assert.NotNil(t, d.Predictions)
	assert.NotNil(t, d.Messages)
	assert.Empty(t, d.Suite)
}

func TestPlaylistSwitchRetainsSurvivingMessages(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.msgs[1] = testMsg(1, "OMATORMAF", "OMA", now, now.Add(time.Hour))
	store.msgs[2] = testMsg(2, "OMASVRMAF", "OMA", now, now.Add(time.Hour))
	s := NewStateManager(store)

	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Suite:            "SevereWx",
		Predictions: []notify.MessagePlaybackPrediction{
			{BroadcastID: 1},
		},
	})
	retained := s.PlaylistData("OMA").Messages[1]
	require.NotNil(t, retained)

	// drop the message from the store; a switch retaining id 1 must
	// reuse the cached record rather than reloading
	delete(store.msgs, 1)
	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Suite:            "SevereWx",
		Predictions: []notify.MessagePlaybackPrediction{
			{BroadcastID: 1},
			{BroadcastID: 2},
		},
	})

	d := s.PlaylistData("OMA")
	assert.Same(t, retained, d.Messages[1])
	assert.NotNil(t, d.Messages[2])
}

func TestPlaylistSwitchDropsDepartedMessages(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.msgs[1] = testMsg(1, "OMATORMAF", "OMA", now, now.Add(time.Hour))
	store.msgs[2] = testMsg(2, "OMASVRMAF", "OMA", now, now.Add(time.Hour))
	s := NewStateManager(store)

	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Predictions:      []notify.MessagePlaybackPrediction{{BroadcastID: 1}, {BroadcastID: 2}},
	})
	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Predictions:      []notify.MessagePlaybackPrediction{{BroadcastID: 2}},
	})

	d := s.PlaylistData("OMA")
	assert.Nil(t, d.Messages[1])
	assert.NotNil(t, d.Messages[2])
}

func TestLiveBroadcastOverridesPlaylistView(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.msgs[1] = testMsg(1, "OMATORMAF", "OMA", now, now.Add(time.Hour))
	s := NewStateManager(store)

	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Suite:            "SevereWx",
		Predictions:      []notify.MessagePlaybackPrediction{{BroadcastID: 1}},
	})
	s.ProcessLiveBroadcastSwitch(notify.LiveBroadcastSwitch{
		TransmitterGroup: "OMA",
		BroadcastID:      "abc",
		State:            notify.LiveBroadcastStarted,
	})

	d := s.PlaylistData("OMA")
	require.NotNil(t, d.Live)
	assert.Equal(t, "abc", d.Live.BroadcastID)
	assert.Equal(t, "LiveBroadcast", d.Suite)

	s.ProcessLiveBroadcastSwitch(notify.LiveBroadcastSwitch{
		TransmitterGroup: "OMA",
		BroadcastID:      "abc",
		State:            notify.LiveBroadcastEnded,
	})
	d = s.PlaylistData("OMA")
	assert.Nil(t, d.Live)
	assert.Equal(t, "SevereWx", d.Suite)
}

func TestPlaybackStatusEvictsStaleLiveOverride(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.msgs[1] = testMsg(1, "OMATORMAF", "OMA", now, now.Add(time.Hour))
	s := NewStateManager(store)

	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Suite:            "SevereWx",
		Predictions:      []notify.MessagePlaybackPrediction{{BroadcastID: 1}},
	})
	s.ProcessLiveBroadcastSwitch(notify.LiveBroadcastSwitch{
		TransmitterGroup: "OMA",
		State:            notify.LiveBroadcastStarted,
	})

	// a message playback report means normal cycling resumed even if
	// the ENDED event was lost
	s.ProcessPlaybackStatus(notify.MessagePlaybackStatus{
		TransmitterGroup: "OMA",
		BroadcastID:      1,
		TransmitTime:     now,
		PlayCount:        2,
	})

	d := s.PlaylistData("OMA")
	assert.Nil(t, d.Live)
	assert.Equal(t, 2, d.Predictions[1].PlayCount)
	assert.Equal(t, now, d.Predictions[1].LastTransmitTime)
}

func TestPlaybackStatusPersistsToneFlags(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	msg := testMsg(1, "OMATORMAF", "OMA", now, now.Add(time.Hour))
	msg.InputMessage.Interrupt = true
	store.msgs[1] = msg
	s := NewStateManager(store)

	s.ProcessPlaylistSwitch(notify.PlaylistSwitch{
		TransmitterGroup: "OMA",
		Predictions:      []notify.MessagePlaybackPrediction{{BroadcastID: 1}},
	})
	s.ProcessPlaybackStatus(notify.MessagePlaybackStatus{
		TransmitterGroup: "OMA",
		BroadcastID:      1,
		PlayedAlertTone:  true,
		PlayedSameTone:   true,
		Interrupt:        true,
	})

	assert.True(t, store.msgs[1].PlayedAlertTone)
	assert.True(t, store.msgs[1].PlayedSameTone)
	assert.True(t, store.msgs[1].PlayedInterrupt)
}

func TestPlaybackStatusForUntrackedGroupIgnored(t *testing.T) {
	s := NewStateManager(newFakeStore())
	// must not panic or create state
	s.ProcessPlaybackStatus(notify.MessagePlaybackStatus{
		TransmitterGroup: "OMA",
		BroadcastID:      9,
	})
	d := s.PlaylistData("OMA")
	assert.Empty(t, d.Predictions)
}
