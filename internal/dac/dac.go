// Package dac tracks the DAC endpoints connected to this comms
// manager, keyed by transmitter group name. Each link is a websocket
// opened by the DAC process; the first frame binds it to its group.
package dac

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/comms"
)

// StatusHandler receives every status frame a DAC sends, tagged with
// its session id, for routing to the owning broadcast task.
type StatusHandler func(comms.LiveBroadcastStatus)

// Server is the registry of live DAC links.
type Server struct {
	onStatus StatusHandler
	upgrader websocket.Upgrader

	mu    sync.Mutex
	links map[string]*link
}

type link struct {
	group string
	conn  *websocket.Conn
	wmu   sync.Mutex
}

func NewServer(onStatus StatusHandler) *Server {
	return &Server{
		onStatus: onStatus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		links: make(map[string]*link),
	}
}

// HandleDAC accepts a DAC connection, reads its registration, and
// pumps status frames until the link drops.
func (s *Server) HandleDAC(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("dac upgrade failed")
		return
	}
	defer conn.Close()

	_, first, err := conn.ReadMessage()
	if err != nil {
		return
	}
	env, err := comms.Unpack(first)
	if err != nil || env.Type != comms.TypeDACRegistration {
		log.Warn().Err(err).Msg("dac connection did not register")
		return
	}
	var reg comms.DACRegistration
	if err := env.Decode(&reg); err != nil {
		log.Warn().Err(err).Msg("unreadable dac registration")
		return
	}
	if reg.TransmitterGroup == "" {
		log.Warn().Msg("dac registration without transmitter group")
		return
	}

	l := &link{group: reg.TransmitterGroup, conn: conn}
	s.attach(l)
	defer s.detach(l)
	log.Info().Str("group", l.group).Msg("dac connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("group", l.group).Msg("dac disconnected")
			return
		}
		frame, err := comms.Unpack(data)
		if err != nil {
			log.Warn().Err(err).Str("group", l.group).
				Msg("dropping unreadable dac frame")
			continue
		}
		if frame.Type != comms.TypeLiveBroadcastStatus {
			log.Debug().Str("type", frame.Type).Str("group", l.group).
				Msg("ignoring dac frame")
			continue
		}
		var status comms.LiveBroadcastStatus
		if err := frame.Decode(&status); err != nil {
			log.Warn().Err(err).Str("group", l.group).
				Msg("unreadable dac status")
			continue
		}
		if status.TransmitterGroup == "" {
			status.TransmitterGroup = l.group
		}
		s.onStatus(status)
	}
}

// IsConnected reports whether a DAC serves the group right now.
func (s *Server) IsConnected(group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[group]
	return ok
}

// Send writes one frame to the group's DAC.
func (s *Server) Send(group string, frame []byte) error {
	s.mu.Lock()
	l, ok := s.links[group]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no dac connected for transmitter group %s", group)
	}
	l.wmu.Lock()
	defer l.wmu.Unlock()
	return l.conn.WriteMessage(websocket.TextMessage, frame)
}

// Groups returns transmitter groups with a live DAC link.
func (s *Server) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.links))
	for group := range s.links {
		out = append(out, group)
	}
	return out
}

func (s *Server) attach(l *link) {
	s.mu.Lock()
	if prev, ok := s.links[l.group]; ok {
		// a reconnecting DAC supersedes its stale link
		prev.conn.Close()
	}
	s.links[l.group] = l
	s.mu.Unlock()
}

func (s *Server) detach(l *link) {
	s.mu.Lock()
	if s.links[l.group] == l {
		delete(s.links, l.group)
	}
	s.mu.Unlock()
}
