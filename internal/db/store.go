// exposes a Store interface that is passed to the playlist and status
// layers so tests can substitute an in-memory implementation
package db

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skylark-radio/skylark/internal/model"
)

type Store interface {
	// transmitter groups
	ListTransmitterGroups() ([]model.TransmitterGroup, error)
	GetTransmitterGroupByName(name string) (*model.TransmitterGroup, error)

	// programs, suites, message types
	GetProgramByID(id int) (*model.Program, error)
	GetProgramForGroup(groupName string) (*model.Program, error)
	GetProgramSuiteForGroup(groupName string, suiteID int) (*model.ProgramSuite, error)
	SetProgramSuiteForced(programSuiteID int, forced bool) error
	GetMessageTypeByAfosID(afosID string) (*model.MessageType, error)

	// broadcast messages
	GetBroadcastMsg(id int64) (*model.BroadcastMsg, error)
	GetBroadcastMsgsForInputMessages(inputIDs []int) ([]*model.BroadcastMsg, error)
	MessagesByAfosID(afosID string) ([]*model.BroadcastMsg, error)
	UnexpiredMessagesByAfosIDAndGroup(afosID string, expireAfter time.Time, groupName string) ([]*model.BroadcastMsg, error)
	SaveBroadcastMsgFlags(msg *model.BroadcastMsg) error
	SetInputMessagesActive(ids []int, active bool) error
	SetForcedExpiration(broadcastIDs []int64) error

	// playlists
	GetPlaylistBySuiteAndGroup(suiteName, groupName string) (*model.Playlist, error)
	GetPlaylistsByGroup(groupName string) ([]*model.Playlist, error)
	SavePlaylist(p *model.Playlist) error
	DeletePlaylist(p *model.Playlist) error

	// geography
	GetZoneByCode(code string) (*model.Zone, error)
	GetAreaByCode(code string) (*model.Area, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore() Store {
	return &pgStore{db: DB}
}
