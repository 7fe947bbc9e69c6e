package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/model"
)

func (s *pgStore) GetProgramByID(id int) (*model.Program, error) {
	var p model.Program
	const q = `SELECT id, name FROM programs WHERE id = $1;`
	if err := s.db.Get(&p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Int("program", id).Msg("[db] GetProgramByID failed")
		return nil, err
	}
	if err := s.loadProgramDetail(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) GetProgramForGroup(groupName string) (*model.Program, error) {
	var p model.Program
	const q = `
	SELECT p.id, p.name
	FROM programs p
	JOIN transmitter_groups tg ON tg.program_id = p.id
	WHERE tg.name = $1;`
	if err := s.db.Get(&p, q, groupName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("group", groupName).Msg("[db] GetProgramForGroup failed")
		return nil, err
	}
	if err := s.loadProgramDetail(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) GetProgramSuiteForGroup(groupName string, suiteID int) (*model.ProgramSuite, error) {
	program, err := s.GetProgramForGroup(groupName)
	if err != nil {
		return nil, err
	}
	for _, ps := range program.Suites {
		if ps.SuiteID == suiteID {
			return ps, nil
		}
	}
	return nil, ErrNotFound
}

func (s *pgStore) SetProgramSuiteForced(programSuiteID int, forced bool) error {
	_, err := s.db.Exec(`UPDATE program_suites SET forced = $2 WHERE id = $1;`,
		programSuiteID, forced)
	if err != nil {
		log.Error().Err(err).Int("program_suite", programSuiteID).
			Msg("[db] SetProgramSuiteForced failed")
	}
	return err
}

func (s *pgStore) GetMessageTypeByAfosID(afosID string) (*model.MessageType, error) {
	var mt model.MessageType
	const q = `
	SELECT id, afos_id, title, designation, periodicity, voice,
	       tone_blackout_start, tone_blackout_end
	FROM message_types
	WHERE afos_id = $1;`
	if err := s.db.Get(&mt, q, afosID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("afos_id", afosID).Msg("[db] GetMessageTypeByAfosID failed")
		return nil, err
	}
	const repQ = `
	SELECT r.afos_id
	FROM message_types r
	JOIN message_type_replacements mtr ON mtr.replaces_id = r.id
	WHERE mtr.message_type_id = $1;`
	if err := s.db.Select(&mt.ReplacementAfosIDs, repQ, mt.ID); err != nil {
		log.Error().Err(err).Str("afos_id", afosID).
			Msg("[db] GetMessageTypeByAfosID: failed to load replacements")
		return nil, err
	}
	return &mt, nil
}

func (s *pgStore) loadProgramDetail(p *model.Program) error {
	const groupQ = `SELECT name FROM transmitter_groups WHERE program_id = $1 ORDER BY name;`
	if err := s.db.Select(&p.TransmitterGroups, groupQ, p.ID); err != nil {
		log.Error().Err(err).Int("program", p.ID).Msg("[db] loadProgramDetail: groups")
		return err
	}

	const psQ = `
	SELECT id, program_id, suite_id, position, forced
	FROM program_suites
	WHERE program_id = $1
	ORDER BY position;`
	if err := s.db.Select(&p.Suites, psQ, p.ID); err != nil {
		log.Error().Err(err).Int("program", p.ID).Msg("[db] loadProgramDetail: suites")
		return err
	}
	for _, ps := range p.Suites {
		suite, err := s.getSuite(ps.SuiteID)
		if err != nil {
			return err
		}
		ps.Suite = suite

		const trigQ = `
		SELECT mt.afos_id
		FROM message_types mt
		JOIN program_suite_triggers pst ON pst.message_type_id = mt.id
		WHERE pst.program_suite_id = $1;`
		if err := s.db.Select(&ps.TriggerAfosIDs, trigQ, ps.ID); err != nil {
			log.Error().Err(err).Int("program_suite", ps.ID).
				Msg("[db] loadProgramDetail: triggers")
			return err
		}
	}
	return nil
}

func (s *pgStore) getSuite(id int) (*model.Suite, error) {
	var suite model.Suite
	const q = `SELECT id, name, type FROM suites WHERE id = $1;`
	if err := s.db.Get(&suite, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Int("suite", id).Msg("[db] getSuite failed")
		return nil, err
	}
	const smQ = `
	SELECT sm.id, sm.suite_id, sm.position, sm.afos_id
	FROM suite_messages sm
	WHERE sm.suite_id = $1
	ORDER BY sm.position;`
	if err := s.db.Select(&suite.Messages, smQ, id); err != nil {
		log.Error().Err(err).Int("suite", id).Msg("[db] getSuite: messages")
		return nil, err
	}
	for i := range suite.Messages {
		mt, err := s.GetMessageTypeByAfosID(suite.Messages[i].AfosID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		suite.Messages[i].MsgType = mt
	}
	return &suite, nil
}
