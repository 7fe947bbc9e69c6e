package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/model"
)

func (s *pgStore) GetPlaylistBySuiteAndGroup(suiteName, groupName string) (*model.Playlist, error) {
	var p model.Playlist
	const q = `
	SELECT p.id, p.suite_id, s.name AS suite_name, p.transmitter_group,
	       p.mod_time, p.start_time, p.end_time, p.trigger_broadcast_id
	FROM playlists p
	JOIN suites s ON s.id = p.suite_id
	WHERE s.name = $1 AND p.transmitter_group = $2;`
	if err := s.db.Get(&p, q, suiteName, groupName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("suite", suiteName).Str("group", groupName).
			Msg("[db] GetPlaylistBySuiteAndGroup failed")
		return nil, err
	}
	if err := s.loadPlaylistMessages(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) GetPlaylistsByGroup(groupName string) ([]*model.Playlist, error) {
	var out []*model.Playlist
	const q = `
	SELECT p.id, p.suite_id, s.name AS suite_name, p.transmitter_group,
	       p.mod_time, p.start_time, p.end_time, p.trigger_broadcast_id
	FROM playlists p
	JOIN suites s ON s.id = p.suite_id
	WHERE p.transmitter_group = $1
	ORDER BY p.id;`
	if err := s.db.Select(&out, q, groupName); err != nil {
		log.Error().Err(err).Str("group", groupName).Msg("[db] GetPlaylistsByGroup failed")
		return nil, err
	}
	for _, p := range out {
		if err := s.loadPlaylistMessages(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SavePlaylist upserts the playlist row and replaces its message set.
// The caller holds the per-{group, suite} cluster lock, so the
// delete-and-reinsert of playlist membership is not racing anyone.
func (s *pgStore) SavePlaylist(p *model.Playlist) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if p.ID == 0 {
		const ins = `
		INSERT INTO playlists
		(suite_id, transmitter_group, mod_time, start_time, end_time, trigger_broadcast_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;`
		if err := tx.Get(&p.ID, ins, p.SuiteID, p.TransmitterGroup,
			p.ModTime, p.StartTime, p.EndTime, p.TriggerBroadcastID); err != nil {
			log.Error().Err(err).Str("group", p.TransmitterGroup).
				Str("suite", p.SuiteName).Msg("[db] SavePlaylist: insert failed")
			return err
		}
	} else {
		const upd = `
		UPDATE playlists
		SET mod_time = $2, start_time = $3, end_time = $4, trigger_broadcast_id = $5
		WHERE id = $1;`
		if _, err := tx.Exec(upd, p.ID, p.ModTime, p.StartTime, p.EndTime,
			p.TriggerBroadcastID); err != nil {
			log.Error().Err(err).Int64("playlist", p.ID).
				Msg("[db] SavePlaylist: update failed")
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM playlist_messages WHERE playlist_id = $1;`, p.ID); err != nil {
		log.Error().Err(err).Int64("playlist", p.ID).
			Msg("[db] SavePlaylist: clear messages failed")
		return err
	}
	for i, msg := range p.Messages {
		const ins = `
		INSERT INTO playlist_messages (playlist_id, broadcast_msg_id, position)
		VALUES ($1, $2, $3);`
		if _, err := tx.Exec(ins, p.ID, msg.ID, i); err != nil {
			log.Error().Err(err).Int64("playlist", p.ID).Int64("broadcast_id", msg.ID).
				Msg("[db] SavePlaylist: add message failed")
			return err
		}
	}
	return tx.Commit()
}

func (s *pgStore) DeletePlaylist(p *model.Playlist) error {
	if p.ID == 0 {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM playlists WHERE id = $1;`, p.ID); err != nil {
		log.Error().Err(err).Int64("playlist", p.ID).Msg("[db] DeletePlaylist failed")
		return err
	}
	return nil
}

func (s *pgStore) loadPlaylistMessages(p *model.Playlist) error {
	const q = `SELECT broadcast_msg_id FROM playlist_messages
	WHERE playlist_id = $1 ORDER BY position;`
	var ids []int64
	if err := s.db.Select(&ids, q, p.ID); err != nil {
		log.Error().Err(err).Int64("playlist", p.ID).
			Msg("[db] loadPlaylistMessages failed")
		return err
	}
	p.Messages = make([]*model.BroadcastMsg, 0, len(ids))
	for _, id := range ids {
		bm, err := s.GetBroadcastMsg(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		p.Messages = append(p.Messages, bm)
	}
	return nil
}
