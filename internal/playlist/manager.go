// Package playlist maintains, per {transmitter group, suite}, the
// persisted playlist and its transmitter-facing artifact, keeping
// both consistent with configuration and message-lifecycle events.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/model"
	"github.com/skylark-radio/skylark/internal/notify"
)

// Publisher announces playlist updates to downstream transmitter
// processes.
type Publisher interface {
	PublishPlaylistUpdate(notify.PlaylistUpdated) error
}

// Locker provides cluster-wide mutual exclusion. Acquire blocks until
// the lock is held; the returned func releases it. TryAcquire makes a
// single attempt, reporting whether the lock was taken.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Manager orchestrates playlist refresh and generation.
type Manager struct {
	store  db.Store
	locks  Locker
	pub    Publisher
	writer *Writer
}

func NewManager(store db.Store, locks Locker, pub Publisher, writer *Writer) *Manager {
	return &Manager{store: store, locks: locks, pub: pub, writer: writer}
}

// RefreshAll recomputes every playlist for every enabled transmitter
// group. Called at startup.
func (m *Manager) RefreshAll(ctx context.Context) {
	groups, err := m.store.ListTransmitterGroups()
	if err != nil {
		log.Error().Err(err).Msg("cannot list transmitter groups for full refresh")
		return
	}
	for i := range groups {
		group := &groups[i]
		if !group.Enabled {
			continue
		}
		program, err := m.store.GetProgramForGroup(group.Name)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				log.Error().Err(err).Str("group", group.Name).
					Msg("cannot load program for full refresh")
			}
			continue
		}
		for _, ps := range program.Suites {
			m.refreshPlaylist(ctx, group, ps)
		}
	}
}

// ProcessSuiteChange regenerates the playlist for the changed suite on
// every enabled transmitter group whose program includes it.
func (m *Manager) ProcessSuiteChange(ctx context.Context, n notify.SuiteConfigChanged) {
	groups, err := m.store.ListTransmitterGroups()
	if err != nil {
		log.Error().Err(err).Msg("cannot list transmitter groups for suite change")
		return
	}
	for i := range groups {
		group := &groups[i]
		if !group.Enabled {
			continue
		}
		ps, err := m.store.GetProgramSuiteForGroup(group.Name, n.SuiteID)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				log.Error().Err(err).Str("group", group.Name).Int("suite", n.SuiteID).
					Msg("cannot resolve program suite for suite change")
			}
			continue
		}
		m.refreshPlaylist(ctx, group, ps)
	}
}

// ProcessProgramChange regenerates every suite playlist for every
// transmitter group assigned to the program, and deletes playlists
// for suites no longer in the program.
func (m *Manager) ProcessProgramChange(ctx context.Context, n notify.ProgramConfigChanged) {
	program, err := m.store.GetProgramByID(n.ProgramID)
	if err != nil {
		log.Error().Err(err).Int("program", n.ProgramID).
			Msg("cannot load changed program")
		return
	}
	for _, groupName := range program.TransmitterGroups {
		group, err := m.store.GetTransmitterGroupByName(groupName)
		if err != nil {
			log.Error().Err(err).Str("group", groupName).
				Msg("skipping unknown group during program change")
			continue
		}
		currentLists, err := m.store.GetPlaylistsByGroup(groupName)
		if err != nil {
			log.Error().Err(err).Str("group", groupName).
				Msg("cannot list current playlists during program change")
			continue
		}
		inProgram := make(map[string]bool, len(program.Suites))
		for _, ps := range program.Suites {
			if ps.Forced && ps.Suite.Type != model.SuiteGeneral {
				ps.Forced = false
				if err := m.store.SetProgramSuiteForced(ps.ID, false); err == nil {
					log.Info().Str("suite", ps.Suite.Name).
						Msg("cleared forced flag during program change")
				}
			}
			m.refreshPlaylist(ctx, group, ps)
			inProgram[ps.Suite.Name] = true
		}
		for _, pl := range currentLists {
			if inProgram[pl.SuiteName] {
				continue
			}
			orphan := &model.ProgramSuite{
				ProgramID: program.ID,
				SuiteID:   pl.SuiteID,
				Suite:     &model.Suite{ID: pl.SuiteID, Name: pl.SuiteName},
			}
			m.deletePlaylist(ctx, group, orphan)
		}
	}
}

// ProcessTransmitterGroupChange regenerates all playlists for each
// surviving group and removes the on-disk tree for deleted ones.
func (m *Manager) ProcessTransmitterGroupChange(ctx context.Context, n notify.TransmitterGroupConfigChanged) {
	for _, name := range n.Groups {
		group, err := m.store.GetTransmitterGroupByName(name)
		if errors.Is(err, db.ErrNotFound) {
			m.purgeDeletedGroup(ctx, name)
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("group", name).
				Msg("cannot resolve group during group change")
			continue
		}
		program, err := m.store.GetProgramForGroup(name)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				log.Error().Err(err).Str("group", name).
					Msg("cannot load program during group change")
			}
			continue
		}
		for _, ps := range program.Suites {
			m.refreshPlaylist(ctx, group, ps)
		}
	}
}

func (m *Manager) purgeDeletedGroup(ctx context.Context, name string) {
	// One cleanup per cluster is enough; whoever holds the lease does
	// the removal and everyone else moves on.
	release, ok, err := m.locks.TryAcquire(ctx, "playlist-cleanup:"+name)
	if err != nil {
		log.Error().Err(err).Str("group", name).
			Msg("cannot lock deleted group for cleanup")
		return
	}
	if !ok {
		log.Debug().Str("group", name).
			Msg("another process is cleaning the deleted group")
		return
	}
	defer release()
	// A consumer process may be removing the same tree; that is fine.
	if err := m.writer.RemoveGroup(name); err != nil {
		log.Warn().Err(err).Str("group", name).
			Msg("playlist directory cleanup was incomplete")
		return
	}
	log.Info().Str("group", name).Msg("removed playlist directory for deleted group")
}

// ProcessMessageActivationChange toggles the active flag on the input
// messages and refreshes every playlist that carries an affected
// message type. Refresh stops per transmitter group after the first
// success, since the activation change affects membership for the
// whole group.
func (m *Manager) ProcessMessageActivationChange(ctx context.Context, n notify.MessageActivationChanged) {
	if err := m.store.SetInputMessagesActive(n.InputMessageIDs, n.Active); err != nil {
		log.Error().Err(err).Msg("cannot update input message activation")
		return
	}
	msgs, err := m.store.GetBroadcastMsgsForInputMessages(n.InputMessageIDs)
	if err != nil {
		log.Error().Err(err).Msg("cannot resolve broadcast messages for activation change")
		return
	}
	m.refreshForMessages(ctx, msgs)
}

// ProcessMessageForcedExpiration force-expires the broadcast messages
// and refreshes the playlists that carried them.
func (m *Manager) ProcessMessageForcedExpiration(ctx context.Context, n notify.MessageForcedExpiration) {
	if err := m.store.SetForcedExpiration(n.BroadcastIDs); err != nil {
		log.Error().Err(err).Msg("cannot mark broadcast messages expired")
		return
	}
	msgs := make([]*model.BroadcastMsg, 0, len(n.BroadcastIDs))
	for _, id := range n.BroadcastIDs {
		bm, err := m.store.GetBroadcastMsg(id)
		if err != nil {
			log.Error().Err(err).Int64("broadcast_id", id).
				Msg("cannot resolve broadcast message for forced expiration")
			continue
		}
		msgs = append(msgs, bm)
	}
	m.refreshForMessages(ctx, msgs)
}

func (m *Manager) refreshForMessages(ctx context.Context, msgs []*model.BroadcastMsg) {
	byGroup := make(map[string]map[string]bool)
	for _, msg := range msgs {
		if byGroup[msg.TransmitterGroup] == nil {
			byGroup[msg.TransmitterGroup] = make(map[string]bool)
		}
		byGroup[msg.TransmitterGroup][msg.AfosID()] = true
	}
	for groupName, afosIDs := range byGroup {
		group, err := m.store.GetTransmitterGroupByName(groupName)
		if err != nil {
			log.Error().Err(err).Str("group", groupName).
				Msg("skipping unknown group during message refresh")
			continue
		}
		program, err := m.store.GetProgramForGroup(groupName)
		if err != nil {
			log.Error().Err(err).Str("group", groupName).
				Msg("skipping group without program during message refresh")
			continue
		}
		for _, ps := range program.Suites {
			if !suiteCarriesAny(ps.Suite, afosIDs) {
				continue
			}
			if m.refreshPlaylist(ctx, group, ps) {
				break
			}
		}
	}
}

func suiteCarriesAny(suite *model.Suite, afosIDs map[string]bool) bool {
	for _, sm := range suite.Messages {
		if afosIDs[sm.AfosID] {
			return true
		}
	}
	return false
}

// ProcessForceSuiteSwitch administratively forces a suite's playlist
// to be written first, deleting any previously forced playlist and
// playlists that would outrank the user's selection.
func (m *Manager) ProcessForceSuiteSwitch(ctx context.Context, group *model.TransmitterGroup, suiteName string) error {
	log.Info().Str("group", group.Name).Str("suite", suiteName).
		Msg("operator requested suite switch")

	program, err := m.store.GetProgramForGroup(group.Name)
	if err != nil {
		return fmt.Errorf("no program assigned to group %s: %w", group.Name, err)
	}
	forced := program.ProgramSuiteFor(suiteName)
	if forced == nil {
		return fmt.Errorf("could not locate suite %s to perform operator-requested suite change", suiteName)
	}
	forced.Forced = true
	if err := m.store.SetProgramSuiteForced(forced.ID, true); err != nil {
		return err
	}
	m.refreshPlaylist(ctx, group, forced)

	forcedType := forced.Suite.Type
	for _, ps := range program.Suites {
		if ps.ID == forced.ID {
			continue
		}
		psType := ps.Suite.Type
		previouslyForced := ps.Forced && psType != model.SuiteGeneral
		outranks := psType > forcedType
		competingGeneral := psType == model.SuiteGeneral && forcedType == model.SuiteGeneral
		if previouslyForced || outranks || competingGeneral {
			log.Info().Str("suite", ps.Suite.Name).
				Msg("deleting playlist displaced by forced switch")
			ps.Forced = false
			if err := m.store.SetProgramSuiteForced(ps.ID, false); err != nil {
				log.Error().Err(err).Str("suite", ps.Suite.Name).
					Msg("cannot clear forced flag on displaced suite")
			}
			m.deletePlaylist(ctx, group, ps)
		}
	}
	return nil
}

// NewMessage merges freshly synthesized broadcast messages into every
// suite playlist carrying their message type. An interrupt message
// that has not yet played as one additionally gets a throwaway
// single-message INTERRUPT playlist written immediately, bypassing
// normal persistence.
func (m *Manager) NewMessage(ctx context.Context, msgs []*model.BroadcastMsg) {
	for _, msg := range msgs {
		m.newMessageForGroup(ctx, msg)
	}
}

func (m *Manager) newMessageForGroup(ctx context.Context, msg *model.BroadcastMsg) {
	group, err := m.store.GetTransmitterGroupByName(msg.TransmitterGroup)
	if err != nil {
		log.Error().Err(err).Str("group", msg.TransmitterGroup).
			Msg("dropping new message for unknown group")
		return
	}
	program, err := m.store.GetProgramForGroup(group.Name)
	if err != nil {
		log.Error().Err(err).Str("group", group.Name).
			Msg("dropping new message for group without program")
		return
	}

	disableForcedSuite := false
	if msg.InputMessage.Interrupt && !msg.PlayedInterrupt {
		m.writeInterruptPlaylist(group, msg)
		disableForcedSuite = true
	}

	var forcedGeneral, forcedHigher *model.ProgramSuite
	for _, ps := range program.Suites {
		if !ps.Forced {
			continue
		}
		if ps.Suite.Type == model.SuiteGeneral {
			forcedGeneral = ps
		} else {
			forcedHigher = ps
		}
	}

	for _, ps := range program.Suites {
		// Only the forced GENERAL suite processes updates; a switch
		// to another GENERAL suite requires operator intervention.
		if forcedGeneral != nil && ps.Suite.Type == model.SuiteGeneral && ps.ID != forcedGeneral.ID {
			continue
		}
		for _, sm := range ps.Suite.Messages {
			if sm.AfosID != msg.AfosID() {
				continue
			}
			isTrigger := ps.IsTrigger(sm.AfosID)
			m.addMessageToPlaylist(ctx, msg, group, ps, isTrigger)
			if isTrigger && forcedHigher != nil && ps.ID == forcedHigher.ID {
				disableForcedSuite = true
			}
		}
	}

	if forcedHigher != nil && disableForcedSuite {
		log.Debug().Str("suite", forcedHigher.Suite.Name).
			Msg("incoming message triggered a suite, clearing forced flag")
		forcedHigher.Forced = false
		if err := m.store.SetProgramSuiteForced(forcedHigher.ID, false); err != nil {
			log.Error().Err(err).Str("suite", forcedHigher.Suite.Name).
				Msg("cannot clear forced flag")
		}
	}
}

func (m *Manager) writeInterruptPlaylist(group *model.TransmitterGroup, msg *model.BroadcastMsg) {
	suite := &model.Suite{
		Name: fmt.Sprintf("Interrupt%d", msg.ID),
		Type: model.SuiteInterrupt,
	}
	pl := &model.Playlist{
		SuiteName:        suite.Name,
		TransmitterGroup: group.Name,
		ModTime:          time.Now().UTC(),
		StartTime:        msg.InputMessage.EffectiveTime,
		EndTime:          msg.InputMessage.ExpirationTime,
		Messages:         []*model.BroadcastMsg{msg},
	}
	span := model.TriggerSpan{
		Start:   pl.StartTime,
		End:     pl.EndTime,
		Trigger: pl.StartTime,
	}
	m.writeSpan(pl, suite, span)
}

func (m *Manager) addMessageToPlaylist(ctx context.Context, msg *model.BroadcastMsg, group *model.TransmitterGroup, ps *model.ProgramSuite, trigger bool) {
	release, err := m.locks.Acquire(ctx, playlistLockKey(group.Name, ps.Suite.Name))
	if err != nil {
		log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("cannot lock playlist for new message")
		return
	}
	defer release()

	now := time.Now().UTC()
	pl, err := m.store.GetPlaylistBySuiteAndGroup(ps.Suite.Name, group.Name)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("cannot load playlist for new message")
		return
	}
	if pl == nil {
		var seed []*model.BroadcastMsg
		switch {
		case ps.Suite.Type == model.SuiteGeneral:
			// general playlists always exist once any message arrives
		case trigger:
			seed = m.loadExistingMessages(ps, group, now, false)
		default:
			// a non-trigger message cannot activate a dormant suite
			return
		}
		pl = &model.Playlist{
			SuiteID:          ps.SuiteID,
			SuiteName:        ps.Suite.Name,
			TransmitterGroup: group.Name,
			Messages:         seed,
		}
	}
	pl.ModTime = now
	pl.Messages = m.mergeMessage(ps.Suite, msg, pl.Messages)
	m.sortAndPersist(pl, ps)
}

// refreshPlaylist recomputes a single {group, suite} playlist under
// the cluster lock. Reports whether the refresh ran to completion.
func (m *Manager) refreshPlaylist(ctx context.Context, group *model.TransmitterGroup, ps *model.ProgramSuite) bool {
	release, err := m.locks.Acquire(ctx, playlistLockKey(group.Name, ps.Suite.Name))
	if err != nil {
		log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("cannot lock playlist for refresh")
		return false
	}
	defer release()
	started := time.Now()
	defer func() {
		log.Info().Dur("elapsed", time.Since(started)).
			Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("playlist refreshed")
	}()

	now := time.Now().UTC()
	pl, err := m.store.GetPlaylistBySuiteAndGroup(ps.Suite.Name, group.Name)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("cannot load playlist for refresh")
		return false
	}
	messages := m.loadExistingMessages(ps, group, now, true)
	if len(messages) > 0 && pl == nil {
		pl = &model.Playlist{
			SuiteID:          ps.SuiteID,
			SuiteName:        ps.Suite.Name,
			TransmitterGroup: group.Name,
		}
	}
	if pl == nil {
		return true
	}
	pl.ModTime = now
	pl.Messages = messages
	m.sortAndPersist(pl, ps)
	return true
}

// deletePlaylist clears the playlist under the same lock and writes
// an authoritative empty artifact, so transmitters that already hold
// the old file see "now empty" instead of a missing file.
func (m *Manager) deletePlaylist(ctx context.Context, group *model.TransmitterGroup, ps *model.ProgramSuite) {
	release, err := m.locks.Acquire(ctx, playlistLockKey(group.Name, ps.Suite.Name))
	if err != nil {
		log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
			Msg("cannot lock playlist for deletion")
		return
	}
	defer release()

	pl, err := m.store.GetPlaylistBySuiteAndGroup(ps.Suite.Name, group.Name)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Error().Err(err).Str("group", group.Name).Str("suite", ps.Suite.Name).
				Msg("cannot load playlist for deletion")
		}
		return
	}
	pl.ModTime = time.Now().UTC()
	pl.Messages = nil
	m.sortAndPersist(pl, ps)
}

// sortAndPersist computes the playback windows, persists or deletes
// the playlist row, and writes one artifact per window. Zero windows
// means the playlist must not play: the row is deleted and a single
// empty artifact is written as the authoritative update.
func (m *Manager) sortAndPersist(pl *model.Playlist, ps *model.ProgramSuite) {
	spans := pl.SetTimes(ps, pl.ModTime)
	if len(spans) == 0 {
		if err := m.store.DeletePlaylist(pl); err != nil {
			log.Error().Err(err).Str("group", pl.TransmitterGroup).
				Str("suite", pl.SuiteName).Msg("cannot delete expired playlist row")
		}
		pl.Messages = nil
		m.writeSpan(pl, ps.Suite, model.TriggerSpan{
			Start:   pl.ModTime,
			End:     pl.ModTime,
			Trigger: pl.ModTime,
		})
		return
	}

	pl.TriggerBroadcastID = triggerBroadcastID(pl, ps, spans[0].Trigger)
	if err := m.store.SavePlaylist(pl); err != nil {
		log.Error().Err(err).Str("group", pl.TransmitterGroup).
			Str("suite", pl.SuiteName).Msg("cannot persist playlist")
		return
	}
	for _, span := range spans {
		m.writeSpan(pl, ps.Suite, span)
	}
}

// triggerBroadcastID resolves the trigger time back to a message in
// the playlist; it must reference a present message or nothing.
func triggerBroadcastID(pl *model.Playlist, ps *model.ProgramSuite, trigger time.Time) int64 {
	for _, msg := range pl.Messages {
		if !ps.IsTrigger(msg.AfosID()) {
			continue
		}
		if msg.InputMessage.EffectiveTime.Equal(trigger) {
			return msg.ID
		}
	}
	return 0
}

// writeSpan converts one playback window to a DacPlaylist, writes it
// and any missing per-message metadata, and publishes the update. On
// a write failure the publish is skipped so consumers never learn of
// a phantom artifact.
func (m *Manager) writeSpan(pl *model.Playlist, suite *model.Suite, span model.TriggerSpan) {
	dac := m.convertForDac(pl, suite, span)
	group, err := m.store.GetTransmitterGroupByName(pl.TransmitterGroup)
	if err != nil {
		log.Error().Err(err).Str("group", pl.TransmitterGroup).
			Msg("cannot resolve group for artifact write")
		return
	}
	for _, msg := range pl.Messages {
		if !msg.Success {
			continue
		}
		// A single malformed message must not block the whole
		// group's playlist.
		if err := m.writer.WriteMessageMetadata(group, msg); err != nil {
			log.Error().Err(err).Int64("broadcast_id", msg.ID).
				Str("group", pl.TransmitterGroup).
				Msg("cannot write message metadata artifact")
		}
	}
	path, err := m.writer.WritePlaylist(dac)
	if err != nil {
		log.Error().Err(err).Str("group", pl.TransmitterGroup).
			Str("suite", pl.SuiteName).Msg("cannot write playlist artifact")
		return
	}
	update := notify.PlaylistUpdated{
		TransmitterGroup: pl.TransmitterGroup,
		Suite:            pl.SuiteName,
		Priority:         int(suite.Type),
		Path:             path,
		ModTime:          pl.ModTime,
	}
	if err := m.pub.PublishPlaylistUpdate(update); err != nil {
		log.Error().Err(err).Str("group", pl.TransmitterGroup).
			Msg("cannot publish playlist update")
	}
}

// convertForDac projects the playlist onto the transmitter-facing
// form, applying the MRD follows ordering over the successful
// messages.
func (m *Manager) convertForDac(pl *model.Playlist, suite *model.Suite, span model.TriggerSpan) *model.DacPlaylist {
	dac := &model.DacPlaylist{
		Priority:         int(suite.Type),
		TransmitterGroup: pl.TransmitterGroup,
		Suite:            pl.SuiteName,
		CreationTime:     pl.ModTime,
		Start:            span.Start,
		Expired:          span.End,
		LatestTrigger:    span.Trigger,
		Interrupt:        suite.Type == model.SuiteInterrupt,
	}

	byID := make(map[int64]*model.BroadcastMsg, len(pl.Messages))
	ordered := make([]int64, 0, len(pl.Messages))
	for _, msg := range pl.Messages {
		if !msg.Success {
			continue
		}
		byID[msg.ID] = msg
		ordered = append(ordered, msg.ID)
	}
	orderer := NewFollowsOrderer(ordered, followsRules(pl.Messages))
	ordered = orderer.OrderWithFollows(fmt.Sprintf("%s(%s)", pl.TransmitterGroup, pl.SuiteName))

	for _, id := range ordered {
		msg := byID[id]
		dac.Messages = append(dac.Messages, model.DacPlaylistMessageID{
			BroadcastID: msg.ID,
			UpdateTime:  msg.UpdateTime,
		})
	}
	return dac
}

// followsRules derives the follows map from the MRD metadata across
// the playlist's messages. Follows ids are scoped to the playlist:
// a reference to a message that is not present produces no rule.
func followsRules(msgs []*model.BroadcastMsg) []FollowsRule {
	mrdToBroadcast := make(map[int]int64, len(msgs))
	for _, msg := range msgs {
		if id := msg.InputMessage.MRD().ID; id != model.NoMRDID {
			mrdToBroadcast[id] = msg.ID
		}
	}
	ruleIndex := make(map[int64]int)
	var rules []FollowsRule
	for _, msg := range msgs {
		for _, followsMRD := range msg.InputMessage.MRD().Follows {
			leader, ok := mrdToBroadcast[followsMRD]
			if !ok {
				continue
			}
			idx, ok := ruleIndex[leader]
			if !ok {
				idx = len(rules)
				ruleIndex[leader] = idx
				rules = append(rules, FollowsRule{FollowsID: leader})
			}
			rules[idx].Followers = append(rules[idx].Followers, msg.ID)
		}
	}
	return rules
}

// loadExistingMessages loads the unexpired broadcast messages that
// belong in the playlist. With checkTrigger set, trigger messages are
// loaded first and a non-general, non-forced suite with no trigger
// messages yields nothing at all.
func (m *Manager) loadExistingMessages(ps *model.ProgramSuite, group *model.TransmitterGroup, now time.Time, checkTrigger bool) []*model.BroadcastMsg {
	var msgs []*model.BroadcastMsg
	if checkTrigger {
		for _, trigger := range ps.TriggerAfosIDs {
			loaded, err := m.store.UnexpiredMessagesByAfosIDAndGroup(trigger, now, group.Name)
			if err != nil {
				log.Error().Err(err).Str("afos_id", trigger).
					Msg("cannot load trigger messages")
				continue
			}
			msgs = append(msgs, loaded...)
		}
		if len(msgs) == 0 && ps.Suite.Type != model.SuiteGeneral && !ps.Forced {
			return nil
		}
	}
	for _, sm := range ps.Suite.Messages {
		if ps.IsTrigger(sm.AfosID) {
			continue
		}
		loaded, err := m.store.UnexpiredMessagesByAfosIDAndGroup(sm.AfosID, now, group.Name)
		if err != nil {
			log.Error().Err(err).Str("afos_id", sm.AfosID).
				Msg("cannot load suite messages")
			continue
		}
		msgs = append(msgs, loaded...)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreationTime.Before(msgs[j].CreationTime)
	})
	var result []*model.BroadcastMsg
	for _, msg := range msgs {
		result = m.mergeMessage(ps.Suite, msg, result)
	}
	return result
}

// mergeMessage adds the message to the list, replacing the first
// message it is a replacement for and dropping any further ones. A
// replacement happens either through an explicit MRD replace id or,
// for messages without an MRD, through the message-type replacement
// links when the area codes match.
func (m *Manager) mergeMessage(suite *model.Suite, msg *model.BroadcastMsg, list []*model.BroadcastMsg) []*model.BroadcastMsg {
	mrd := msg.InputMessage.MRD()

	matReplacements := map[string]bool{msg.AfosID(): true}
	for _, sm := range suite.Messages {
		if sm.AfosID != msg.AfosID() {
			continue
		}
		if sm.MsgType != nil {
			for _, rep := range sm.MsgType.ReplacementAfosIDs {
				matReplacements[rep] = true
			}
		}
		break
	}

	out := make([]*model.BroadcastMsg, len(list))
	copy(out, list)
	added := false
	for i := 0; i < len(out); i++ {
		candidate := out[i]
		candidateMRD := candidate.InputMessage.MRD().ID
		areaCodesEqual := msg.InputMessage.AreaCodes != "" &&
			msg.InputMessage.AreaCodes == candidate.InputMessage.AreaCodes
		mrdReplacement := intsContain(mrd.Replaces, candidateMRD)
		matReplacement := candidateMRD == model.NoMRDID &&
			matReplacements[candidate.AfosID()] && areaCodesEqual
		if !mrdReplacement && !matReplacement {
			continue
		}
		if added {
			out = append(out[:i], out[i+1:]...)
			i--
		} else {
			out[i] = msg
			added = true
		}
	}
	if !added {
		out = append(out, msg)
	}
	return out
}

func intsContain(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func playlistLockKey(group, suite string) string {
	return fmt.Sprintf("playlist:%s-%s", group, suite)
}
