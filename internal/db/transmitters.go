package db

import (
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

func (s *pgStore) ListTransmitterGroups() ([]model.TransmitterGroup, error) {
	var out []model.TransmitterGroup
	const q = `
	SELECT id, name, program_id, enabled
	FROM transmitter_groups
	ORDER BY name;`
	if err := s.db.Select(&out, q); err != nil {
		log.Error().Err(err).Msg("[db] ListTransmitterGroups: failed to select groups")
		return nil, err
	}
	for i := range out {
		transmitters, err := s.listTransmitters(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Transmitters = transmitters
	}
	return out, nil
}

func (s *pgStore) GetTransmitterGroupByName(name string) (*model.TransmitterGroup, error) {
	var g model.TransmitterGroup
	const q = `
	SELECT id, name, program_id, enabled
	FROM transmitter_groups
	WHERE name = $1;`
	if err := s.db.Get(&g, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("group", name).Msg("[db] GetTransmitterGroupByName failed")
		return nil, err
	}
	transmitters, err := s.listTransmitters(g.ID)
	if err != nil {
		return nil, err
	}
	g.Transmitters = transmitters
	return &g, nil
}

func (s *pgStore) listTransmitters(groupID int) ([]model.Transmitter, error) {
	var out []model.Transmitter
	const q = `
	SELECT id, group_id, mnemonic, enabled
	FROM transmitters
	WHERE group_id = $1
	ORDER BY mnemonic;`
	if err := s.db.Select(&out, q, groupID); err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("[db] listTransmitters failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) GetZoneByCode(code string) (*model.Zone, error) {
	var z model.Zone
	const q = `SELECT id, zone_code, name FROM zones WHERE zone_code = $1;`
	if err := s.db.Get(&z, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("zone", code).Msg("[db] GetZoneByCode failed")
		return nil, err
	}
	const areaQ = `
	SELECT a.id, a.area_code, a.name
	FROM areas a
	JOIN zone_areas za ON za.area_id = a.id
	WHERE za.zone_id = $1
	ORDER BY a.area_code;`
	if err := s.db.Select(&z.Areas, areaQ, z.ID); err != nil {
		log.Error().Err(err).Str("zone", code).Msg("[db] GetZoneByCode: failed to load areas")
		return nil, err
	}
	for i := range z.Areas {
		if err := s.loadAreaTransmitters(&z.Areas[i]); err != nil {
			return nil, err
		}
	}
	return &z, nil
}

func (s *pgStore) GetAreaByCode(code string) (*model.Area, error) {
	var a model.Area
	const q = `SELECT id, area_code, name FROM areas WHERE area_code = $1;`
	if err := s.db.Get(&a, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("area", code).Msg("[db] GetAreaByCode failed")
		return nil, err
	}
	if err := s.loadAreaTransmitters(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *pgStore) loadAreaTransmitters(a *model.Area) error {
	const q = `SELECT transmitter_id FROM area_transmitters WHERE area_id = $1;`
	if err := s.db.Select(&a.Transmitters, q, a.ID); err != nil {
		log.Error().Err(err).Str("area", a.AreaCode).Msg("[db] loadAreaTransmitters failed")
		return err
	}
	return nil
}
