// Package cluster maintains the full-mesh websocket peering between
// comms manager processes. Every peer link carries the live-broadcast
// coordination frames; the mesh itself is content-agnostic and hands
// inbound frames to a dispatch callback.
package cluster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/comms"
)

const (
	reconnectDelay = 5 * time.Second
	sendQueueSize  = 64
)

// Server is one node's view of the mesh. Peers are keyed by the host
// name they announce in their hello frame, so a pair of nodes that
// dial each other keeps a single logical link.
type Server struct {
	self     string
	onFrame  func([]byte)
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
}

type peer struct {
	host string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func NewServer(self string, onFrame func([]byte)) *Server {
	return &Server{
		self:    self,
		onFrame: onFrame,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
	}
}

// Connect dials every configured peer address and keeps redialing
// dropped links until ctx is cancelled.
func (s *Server) Connect(ctx context.Context, addrs []string) {
	for _, addr := range addrs {
		go s.maintain(ctx, addr)
	}
}

func (s *Server) maintain(ctx context.Context, addr string) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/cluster"}
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Warn().Err(err).Str("peer", addr).Msg("cluster dial failed")
		} else if err := s.runLink(conn, true); err != nil {
			log.Warn().Err(err).Str("peer", addr).Msg("cluster link closed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// HandlePeer accepts an inbound peer connection.
func (s *Server) HandlePeer(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("cluster peer upgrade failed")
		return
	}
	if err := s.runLink(conn, false); err != nil {
		log.Warn().Err(err).Msg("inbound cluster link closed")
	}
}

// runLink performs the hello exchange, registers the peer, and pumps
// frames until the link drops. Blocks for the life of the connection.
func (s *Server) runLink(conn *websocket.Conn, initiated bool) error {
	defer conn.Close()

	hello, err := comms.Pack(comms.TypeClusterHello, comms.ClusterHello{Host: s.self})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return err
	}
	_, first, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	env, err := comms.Unpack(first)
	if err != nil || env.Type != comms.TypeClusterHello {
		return fmt.Errorf("peer did not identify itself")
	}
	var id comms.ClusterHello
	if err := env.Decode(&id); err != nil {
		return err
	}

	p := &peer{
		host: id.Host,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	if !s.register(p) {
		// already linked to this host through the other direction
		log.Debug().Str("peer", id.Host).Bool("initiated", initiated).
			Msg("dropping duplicate cluster link")
		return nil
	}
	defer s.unregister(p)
	log.Info().Str("peer", id.Host).Bool("initiated", initiated).
		Msg("cluster peer connected")

	go p.writeLoop()
	defer p.close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.onFrame(data)
	}
}

// SendDataToAll queues the frame on every connected peer link and
// returns the number of peers it was queued for. A peer whose queue
// is full is treated as dead weight and skipped.
func (s *Server) SendDataToAll(frame []byte) int {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	sent := 0
	for _, p := range peers {
		select {
		case p.send <- frame:
			sent++
		default:
			log.Warn().Str("peer", p.host).Msg("cluster send queue full, frame dropped")
		}
	}
	return sent
}

// Peers returns the hosts currently linked.
func (s *Server) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.peers))
	for host := range s.peers {
		out = append(out, host)
	}
	return out
}

func (s *Server) register(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[p.host]; exists {
		return false
	}
	s.peers[p.host] = p
	return true
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	if s.peers[p.host] == p {
		delete(s.peers, p.host)
	}
	s.mu.Unlock()
	log.Info().Str("peer", p.host).Msg("cluster peer disconnected")
}

func (p *peer) writeLoop() {
	for {
		select {
		case frame := <-p.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("peer", p.host).Msg("cluster write failed")
				p.conn.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peer) close() {
	p.once.Do(func() { close(p.done) })
}
