package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/model"
)

const broadcastMsgColumns = `
	bm.id, bm.creation_time, bm.update_time, bm.transmitter_group,
	bm.input_message_id, bm.success, bm.played_interrupt,
	bm.played_alert_tone, bm.played_same_tone, bm.forced_expiration`

func (s *pgStore) GetBroadcastMsg(id int64) (*model.BroadcastMsg, error) {
	var bm model.BroadcastMsg
	const q = `SELECT` + broadcastMsgColumns + `
	FROM broadcast_msgs bm WHERE bm.id = $1;`
	if err := s.db.Get(&bm, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Int64("broadcast_id", id).Msg("[db] GetBroadcastMsg failed")
		return nil, err
	}
	if err := s.loadBroadcastMsgDetail(&bm); err != nil {
		return nil, err
	}
	return &bm, nil
}

func (s *pgStore) GetBroadcastMsgsForInputMessages(inputIDs []int) ([]*model.BroadcastMsg, error) {
	if len(inputIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT`+broadcastMsgColumns+`
	FROM broadcast_msgs bm WHERE bm.input_message_id IN (?);`, inputIDs)
	if err != nil {
		return nil, err
	}
	return s.selectBroadcastMsgs(s.db.Rebind(q), args...)
}

func (s *pgStore) MessagesByAfosID(afosID string) ([]*model.BroadcastMsg, error) {
	const q = `SELECT` + broadcastMsgColumns + `
	FROM broadcast_msgs bm
	JOIN input_messages im ON im.id = bm.input_message_id
	WHERE im.afos_id = $1 AND im.active AND NOT bm.forced_expiration
	ORDER BY bm.creation_time;`
	return s.selectBroadcastMsgs(q, afosID)
}

func (s *pgStore) UnexpiredMessagesByAfosIDAndGroup(afosID string, expireAfter time.Time, groupName string) ([]*model.BroadcastMsg, error) {
	const q = `SELECT` + broadcastMsgColumns + `
	FROM broadcast_msgs bm
	JOIN input_messages im ON im.id = bm.input_message_id
	WHERE im.afos_id = $1
	  AND im.expiration_time > $2
	  AND im.active
	  AND bm.transmitter_group = $3
	  AND NOT bm.forced_expiration
	ORDER BY bm.creation_time;`
	return s.selectBroadcastMsgs(q, afosID, expireAfter, groupName)
}

func (s *pgStore) SaveBroadcastMsgFlags(msg *model.BroadcastMsg) error {
	_, err := s.db.Exec(`
	UPDATE broadcast_msgs
	SET played_interrupt  = $2,
	    played_alert_tone = $3,
	    played_same_tone  = $4,
	    forced_expiration = $5,
	    update_time       = now()
	WHERE id = $1;`,
		msg.ID, msg.PlayedInterrupt, msg.PlayedAlertTone,
		msg.PlayedSameTone, msg.ForcedExpiration)
	if err != nil {
		log.Error().Err(err).Int64("broadcast_id", msg.ID).
			Msg("[db] SaveBroadcastMsgFlags failed")
	}
	return err
}

func (s *pgStore) SetInputMessagesActive(ids []int, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`UPDATE input_messages SET active = ? WHERE id IN (?);`,
		active, ids)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(s.db.Rebind(q), args...); err != nil {
		log.Error().Err(err).Msg("[db] SetInputMessagesActive failed")
		return err
	}
	return nil
}

func (s *pgStore) SetForcedExpiration(broadcastIDs []int64) error {
	if len(broadcastIDs) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`
	UPDATE broadcast_msgs SET forced_expiration = true, update_time = now()
	WHERE id IN (?);`, broadcastIDs)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(s.db.Rebind(q), args...); err != nil {
		log.Error().Err(err).Msg("[db] SetForcedExpiration failed")
		return err
	}
	return nil
}

func (s *pgStore) selectBroadcastMsgs(q string, args ...interface{}) ([]*model.BroadcastMsg, error) {
	var out []*model.BroadcastMsg
	if err := s.db.Select(&out, q, args...); err != nil {
		log.Error().Err(err).Msg("[db] selectBroadcastMsgs failed")
		return nil, err
	}
	for _, bm := range out {
		if err := s.loadBroadcastMsgDetail(bm); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *pgStore) loadBroadcastMsgDetail(bm *model.BroadcastMsg) error {
	var im model.InputMessage
	const imQ = `
	SELECT id, name, language, afos_id, creation_time, effective_time,
	       expiration_time, periodicity, mrd, active, confirm, interrupt,
	       alert_tone, nwr_same_tone, area_codes, content
	FROM input_messages WHERE id = $1;`
	if err := s.db.Get(&im, imQ, bm.InputMessageID); err != nil {
		log.Error().Err(err).Int64("broadcast_id", bm.ID).
			Msg("[db] loadBroadcastMsgDetail: input message")
		return err
	}
	bm.InputMessage = &im

	const fragQ = `
	SELECT id, position, ssml, output_name, success
	FROM broadcast_fragments
	WHERE broadcast_msg_id = $1
	ORDER BY position;`
	if err := s.db.Select(&bm.Fragments, fragQ, bm.ID); err != nil {
		log.Error().Err(err).Int64("broadcast_id", bm.ID).
			Msg("[db] loadBroadcastMsgDetail: fragments")
		return err
	}
	return nil
}
