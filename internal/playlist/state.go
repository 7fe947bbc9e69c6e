package playlist

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/model"
	"github.com/skylark-radio/skylark/internal/notify"
)

// PlaylistData is the queryable snapshot of what one transmitter
// group is currently playing: the active suite, the playback cycle
// predictions, and the message records behind them. Live is set while
// a live stream has taken the group over and supersedes the rest.
type PlaylistData struct {
	Suite             string
	PlaybackCycleTime int64
	Predictions       map[int64]notify.MessagePlaybackPrediction
	Messages          map[int64]*model.BroadcastMsg
	Live              *notify.LiveBroadcastSwitch
}

func newPlaylistData() *PlaylistData {
	return &PlaylistData{
		Predictions: make(map[int64]notify.MessagePlaybackPrediction),
		Messages:    make(map[int64]*model.BroadcastMsg),
	}
}

func (d *PlaylistData) clone() *PlaylistData {
	out := newPlaylistData()
	out.Suite = d.Suite
	out.PlaybackCycleTime = d.PlaybackCycleTime
	out.Live = d.Live
	for id, p := range d.Predictions {
		out.Predictions[id] = p
	}
	for id, m := range d.Messages {
		out.Messages[id] = m
	}
	return out
}

// StateManager caches per-group playback state from transmitter
// status events so queries never touch the transmitter processes.
type StateManager struct {
	mu    sync.Mutex
	store db.Store

	data map[string]*PlaylistData
	live map[string]*PlaylistData
}

func NewStateManager(store db.Store) *StateManager {
	return &StateManager{
		store: store,
		data:  make(map[string]*PlaylistData),
		live:  make(map[string]*PlaylistData),
	}
}

// ProcessLiveBroadcastSwitch installs or removes the live-broadcast
// override view for a group. While installed it is the authoritative
// answer to PlaylistData queries for that group.
func (s *StateManager) ProcessLiveBroadcastSwitch(n notify.LiveBroadcastSwitch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.State == notify.LiveBroadcastStarted {
		d := newPlaylistData()
		d.Suite = "LiveBroadcast"
		d.Live = &n
		s.live[n.TransmitterGroup] = d
		return
	}
	delete(s.live, n.TransmitterGroup)
}

// ProcessPlaylistSwitch replaces the cached view for a group with the
// new cycle. Message records for broadcast ids that survive the switch
// are retained; only new ids are loaded from the store.
func (s *StateManager) ProcessPlaylistSwitch(n notify.PlaylistSwitch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.data[n.TransmitterGroup]
	fresh := newPlaylistData()
	fresh.Suite = n.Suite
	fresh.PlaybackCycleTime = n.PlaybackCycleTime
	for _, pred := range n.Predictions {
		fresh.Predictions[pred.BroadcastID] = pred
		if old != nil {
			if msg, ok := old.Messages[pred.BroadcastID]; ok {
				fresh.Messages[pred.BroadcastID] = msg
				continue
			}
		}
		msg, err := s.store.GetBroadcastMsg(pred.BroadcastID)
		if err != nil {
			log.Error().Err(err).Int64("broadcast_id", pred.BroadcastID).
				Str("group", n.TransmitterGroup).
				Msg("cannot load message for playlist switch")
			continue
		}
		fresh.Messages[pred.BroadcastID] = msg
	}
	s.data[n.TransmitterGroup] = fresh
}

// ProcessPlaybackStatus folds a single played-message report into the
// cached prediction for that message and persists the played-tone
// flags. A playback report also means any live-broadcast override for
// the group is stale and is evicted.
func (s *StateManager) ProcessPlaybackStatus(n notify.MessagePlaybackStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.live, n.TransmitterGroup)

	d := s.data[n.TransmitterGroup]
	if d == nil {
		log.Debug().Str("group", n.TransmitterGroup).
			Msg("playback status for group with no cached playlist")
		return
	}
	pred := d.Predictions[n.BroadcastID]
	pred.BroadcastID = n.BroadcastID
	pred.LastTransmitTime = n.TransmitTime
	pred.PlayCount = n.PlayCount
	pred.PlayedAlertTone = pred.PlayedAlertTone || n.PlayedAlertTone
	pred.PlayedSameTone = pred.PlayedSameTone || n.PlayedSameTone
	d.Predictions[n.BroadcastID] = pred

	s.persistPlayedFlags(n)
}

// persistPlayedFlags records tone playback and interrupt completion on
// the broadcast message so they survive restarts and are not replayed.
func (s *StateManager) persistPlayedFlags(n notify.MessagePlaybackStatus) {
	msg, err := s.store.GetBroadcastMsg(n.BroadcastID)
	if err != nil {
		log.Error().Err(err).Int64("broadcast_id", n.BroadcastID).
			Msg("cannot load message to persist playback flags")
		return
	}
	changed := false
	if n.PlayedAlertTone && !msg.PlayedAlertTone {
		msg.PlayedAlertTone = true
		changed = true
	}
	if n.PlayedSameTone && !msg.PlayedSameTone {
		msg.PlayedSameTone = true
		changed = true
	}
	if n.Interrupt && !msg.PlayedInterrupt {
		msg.PlayedInterrupt = true
		changed = true
	}
	if !changed {
		return
	}
	if err := s.store.SaveBroadcastMsgFlags(msg); err != nil {
		log.Error().Err(err).Int64("broadcast_id", n.BroadcastID).
			Msg("cannot persist playback flags")
	}
}

// PlaylistData returns a copy of the current playback view for the
// group. Never nil: an unknown group yields an empty snapshot.
func (s *StateManager) PlaylistData(group string) *PlaylistData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.live[group]; ok {
		return d.clone()
	}
	if d, ok := s.data[group]; ok {
		return d.clone()
	}
	return newPlaylistData()
}
