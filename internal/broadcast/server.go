package broadcast

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/comms"
)

// Task is the session handle the server's dispatch fans messages
// into. Implemented by StreamTask and ClusteredStreamTask.
type Task interface {
	BroadcastID() string
	DeliverClient(comms.Envelope)
	DeliverDACStatus(comms.LiveBroadcastStatus)
	DeliverClaim(comms.GroupsClaim)
	DeliverPeerStatus(comms.BroadcastStatus)
	DeliverTransition(comms.TransitionTrigger)
	Shutdown()
}

// Server accepts live-broadcast client sessions and routes cluster
// and DAC traffic to the task that owns each broadcast id.
type Server struct {
	host     string
	dacs     DACLink
	cluster  Cluster
	notifier Notifier
	upgrader websocket.Upgrader

	mu    sync.Mutex
	tasks map[string]Task
}

func NewServer(host string, dacs DACLink, cluster Cluster, notifier Notifier) *Server {
	return &Server{
		host:     host,
		dacs:     dacs,
		cluster:  cluster,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		tasks: make(map[string]Task),
	}
}

// HandleClient upgrades a client connection, expects a session start
// request as the first frame, and pumps the rest of the connection
// into the spawned task.
func (s *Server) HandleClient(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("live broadcast client upgrade failed")
		return
	}

	_, first, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return
	}
	env, err := comms.Unpack(first)
	if err != nil || env.Type != comms.TypeStartLiveBroadcast {
		log.Warn().Err(err).Str("type", env.Type).
			Msg("live broadcast client did not open with a start request")
		ws.Close()
		return
	}
	var req comms.StartLiveBroadcastRequest
	if err := env.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("unreadable live broadcast start request")
		ws.Close()
		return
	}

	task := NewStreamTask(req, s.dacs, s.cluster, s.notifier,
		newWSConn(ws), s.taskFinished)
	if !s.register(task) {
		log.Warn().Str("broadcast_id", req.BroadcastID).
			Msg("duplicate live broadcast session rejected")
		ws.Close()
		return
	}
	go task.Run(context.Background())

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			task.Shutdown()
			return
		}
		frame, err := comms.Unpack(data)
		if err != nil {
			log.Warn().Err(err).Str("broadcast_id", req.BroadcastID).
				Msg("dropping unreadable client frame")
			continue
		}
		task.DeliverClient(frame)
	}
}

// HandlePeerFrame dispatches one frame received from a cluster peer.
func (s *Server) HandlePeerFrame(data []byte) {
	env, err := comms.Unpack(data)
	if err != nil {
		log.Warn().Err(err).Msg("dropping unreadable cluster frame")
		return
	}
	switch env.Type {
	case comms.TypeStartLiveBroadcast:
		s.startMemberSession(env)
	case comms.TypeGroupsClaim:
		var claim comms.GroupsClaim
		if err := env.Decode(&claim); err == nil {
			if task := s.lookup(claim.BroadcastID); task != nil {
				task.DeliverClaim(claim)
			}
		}
	case comms.TypeBroadcastStatus:
		var status comms.BroadcastStatus
		if err := env.Decode(&status); err == nil {
			if task := s.lookup(status.BroadcastID); task != nil {
				task.DeliverPeerStatus(status)
			}
		}
	case comms.TypeTransitionTrigger:
		var tr comms.TransitionTrigger
		if err := env.Decode(&tr); err == nil {
			if task := s.lookup(tr.BroadcastID); task != nil {
				task.DeliverTransition(tr)
			}
		}
	case comms.TypeBroadcastAudio, comms.TypeLiveBroadcastStop:
		var ref struct {
			BroadcastID string `json:"broadcast_id"`
		}
		if err := env.Decode(&ref); err == nil {
			if task := s.lookup(ref.BroadcastID); task != nil {
				task.DeliverClient(env)
			}
		}
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring cluster frame")
	}
}

// startMemberSession spawns the member-side task for a session a peer
// is running, if any requested group is reachable from here.
func (s *Server) startMemberSession(env comms.Envelope) {
	var req comms.StartLiveBroadcastRequest
	if err := env.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("unreadable rebroadcast session request")
		return
	}
	reachable := false
	for _, group := range req.TransmitterGroups {
		if s.dacs.IsConnected(group) {
			reachable = true
			break
		}
	}
	if !reachable {
		return
	}
	task := NewClusteredStreamTask(req, s.host, s.dacs, s.cluster, s.notifier, s.taskFinished)
	if !s.register(task) {
		return
	}
	go task.Run(context.Background())
}

// HandleDACStatus routes a DAC status frame to its session.
func (s *Server) HandleDACStatus(status comms.LiveBroadcastStatus) {
	if task := s.lookup(status.BroadcastID); task != nil {
		task.DeliverDACStatus(status)
		return
	}
	log.Debug().Str("broadcast_id", status.BroadcastID).
		Str("group", status.TransmitterGroup).
		Msg("dac status for unknown session")
}

// Shutdown cancels every running session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		t.Shutdown()
	}
}

func (s *Server) register(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.BroadcastID()]; exists {
		return false
	}
	s.tasks[task.BroadcastID()] = task
	return true
}

func (s *Server) lookup(broadcastID string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[broadcastID]
}

func (s *Server) taskFinished(broadcastID string) {
	s.mu.Lock()
	delete(s.tasks, broadcastID)
	s.mu.Unlock()
	log.Info().Str("broadcast_id", broadcastID).Msg("live broadcast session ended")
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Close()
}
