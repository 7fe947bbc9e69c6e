package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/comms"
	"github.com/skylark-radio/skylark/internal/notify"
)

// State is one phase of a live-broadcast session.
type State string

const (
	StateInit    State = "INIT"
	StateReady   State = "READY"
	StateTrigger State = "TRIGGER"
	StateLive    State = "LIVE"
	StateStop    State = "STOP"
	StateError   State = "ERROR"
)

// Phase wait bounds. The trigger wait is the longest because SAME
// tone playback itself takes several seconds.
const (
	peerClaimWait  = 6 * time.Second
	dacReadyWait   = 3 * time.Second
	dacTriggerWait = 20 * time.Second

	// A member's phase covers its own DAC waits plus transit, so the
	// primary allows the same bound a member applies at its gate.
	peerStatusWait = 30 * time.Second
)

// DACLink is the local DAC registry a task prepares, triggers, and
// streams through.
type DACLink interface {
	IsConnected(group string) bool
	Send(group string, frame []byte) error
}

// Cluster broadcasts a frame to every connected peer and reports how
// many received it.
type Cluster interface {
	SendDataToAll(frame []byte) int
}

// Notifier publishes live-broadcast switch events to status
// consumers.
type Notifier interface {
	PublishLiveBroadcastSwitch(notify.LiveBroadcastSwitch) error
}

// ClientConn is the requesting client's socket. Nil on cluster member
// tasks, which have no client of their own.
type ClientConn interface {
	Send(frame []byte) error
	Close() error
}

// StreamTask runs one live-broadcast session as the primary: it holds
// the client socket, claims the locally reachable transmitter groups,
// drives its DACs through prepare/trigger/stream, and paces cluster
// members through the same phases.
type StreamTask struct {
	req      comms.StartLiveBroadcastRequest
	groups   *GroupManager
	dacs     DACLink
	cluster  Cluster
	notifier Notifier
	client   ClientConn
	finished func(broadcastID string)

	clientCh chan comms.Envelope
	dacCh    chan comms.LiveBroadcastStatus
	claimCh  chan comms.GroupsClaim
	peerCh   chan comms.BroadcastStatus

	// hosts that claimed groups for this session; written only
	// during the init phase, read by later phases on the same
	// goroutine
	peerHosts map[string]bool

	stopCh   chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	state State
}

func NewStreamTask(req comms.StartLiveBroadcastRequest, dacs DACLink, cluster Cluster, notifier Notifier, client ClientConn, finished func(string)) *StreamTask {
	return &StreamTask{
		req:      req,
		groups:   NewGroupManager(req.TransmitterGroups),
		dacs:     dacs,
		cluster:  cluster,
		notifier: notifier,
		client:   client,
		finished: finished,
		clientCh:  make(chan comms.Envelope, 64),
		dacCh:     make(chan comms.LiveBroadcastStatus, 16),
		claimCh:   make(chan comms.GroupsClaim, 16),
		peerCh:    make(chan comms.BroadcastStatus, 16),
		peerHosts: make(map[string]bool),
		stopCh:    make(chan struct{}),
		state:     StateInit,
	}
}

// BroadcastID identifies the session.
func (t *StreamTask) BroadcastID() string { return t.req.BroadcastID }

// State returns the current phase.
func (t *StreamTask) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *StreamTask) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	log.Debug().Str("broadcast_id", t.req.BroadcastID).Str("state", string(s)).
		Msg("live broadcast state change")
}

// DeliverClient hands the task a frame read from the client socket
// (or, on members, relayed from the primary).
func (t *StreamTask) DeliverClient(env comms.Envelope) {
	select {
	case t.clientCh <- env:
	case <-t.stopCh:
	}
}

// DeliverDACStatus hands the task a DAC acknowledgment or failure.
func (t *StreamTask) DeliverDACStatus(s comms.LiveBroadcastStatus) {
	select {
	case t.dacCh <- s:
	case <-t.stopCh:
	}
}

// DeliverClaim hands the task a peer's group claim.
func (t *StreamTask) DeliverClaim(c comms.GroupsClaim) {
	select {
	case t.claimCh <- c:
	case <-t.stopCh:
	}
}

// DeliverTransition is a no-op on the primary; only members gate on
// transition triggers.
func (t *StreamTask) DeliverTransition(comms.TransitionTrigger) {}

// DeliverPeerStatus hands the task a cluster member's phase report or
// failure notice.
func (t *StreamTask) DeliverPeerStatus(s comms.BroadcastStatus) {
	select {
	case t.peerCh <- s:
	case <-t.stopCh:
	}
}

// Shutdown cancels the session. Idempotent, callable from any state
// and any goroutine.
func (t *StreamTask) Shutdown() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Run drives the session to completion. Blocks until STOP or ERROR.
func (t *StreamTask) Run(ctx context.Context) {
	defer t.finish()

	if err := t.initPhase(ctx); err != nil {
		t.abort(err)
		return
	}
	t.advancePeers(StateReady)
	if err := t.readyPhase(ctx); err != nil {
		t.abort(err)
		return
	}
	if err := t.awaitPeers(ctx, StateReady); err != nil {
		t.abort(err)
		return
	}
	t.advancePeers(StateTrigger)
	if err := t.triggerPhase(ctx); err != nil {
		t.abort(err)
		return
	}
	if err := t.awaitPeers(ctx, StateTrigger); err != nil {
		t.abort(err)
		return
	}
	t.advancePeers(StateLive)
	t.notifySwitch(notify.LiveBroadcastStarted)

	err := t.livePhase(ctx)
	if err != nil {
		log.Error().Err(err).Str("broadcast_id", t.req.BroadcastID).
			Msg("live broadcast terminated abnormally")
		t.sendClientStatus(comms.ClientStatusFailed, err.Error())
	}
	t.advancePeers(StateStop)
	t.setState(StateStop)
	t.stopDACs()
	t.notifySwitch(notify.LiveBroadcastEnded)
}

// initPhase announces the session to the cluster, claims the locally
// reachable groups, and waits for peers to claim the rest. Any group
// left unclaimed is fatal.
func (t *StreamTask) initPhase(ctx context.Context) error {
	frame, err := comms.Pack(comms.TypeStartLiveBroadcast, t.req)
	if err != nil {
		return err
	}
	peerCount := t.cluster.SendDataToAll(frame)

	mine := t.groups.ClaimLocal(t.dacs)
	log.Info().Str("broadcast_id", t.req.BroadcastID).
		Strs("local_groups", mine).Int("peers", peerCount).
		Msg("live broadcast session starting")

	if !t.groups.FullyClaimed() && peerCount > 0 {
		timer := time.NewTimer(peerClaimWait)
		defer timer.Stop()
	wait:
		for {
			select {
			case claim := <-t.claimCh:
				t.groups.ClaimPeer(claim.TransmitterGroups)
				t.peerHosts[claim.Host] = true
				if t.groups.FullyClaimed() {
					break wait
				}
			case <-timer.C:
				break wait
			case <-t.stopCh:
				return fmt.Errorf("session cancelled during initialization")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if unclaimed := t.groups.Unclaimed(); len(unclaimed) > 0 {
		return fmt.Errorf("no comms manager can reach transmitter group(s) %s",
			strings.Join(unclaimed, ", "))
	}
	return nil
}

// readyPhase prepares every locally served DAC and waits for each to
// acknowledge readiness.
func (t *StreamTask) readyPhase(ctx context.Context) error {
	t.setState(StateReady)
	pending := make(map[string]bool)
	for _, group := range t.groups.Mine() {
		frame, err := comms.Pack(comms.TypePrepareLiveBroadcast, comms.PrepareLiveBroadcastRequest{
			BroadcastID:      t.req.BroadcastID,
			TransmitterGroup: group,
			MessageType:      t.req.MessageType,
			SAMETone:         t.req.SAMETone,
		})
		if err != nil {
			return err
		}
		if err := t.dacs.Send(group, frame); err != nil {
			return fmt.Errorf("cannot prepare transmitter group %s: %w", group, err)
		}
		pending[group] = true
	}
	if err := t.awaitDACs(ctx, pending, dacReadyWait, "prepare"); err != nil {
		t.stopDACs()
		return err
	}
	return nil
}

// triggerPhase commands SAME tone playback on every local DAC and
// waits for the (slow) triggered acknowledgments.
func (t *StreamTask) triggerPhase(ctx context.Context) error {
	t.setState(StateTrigger)
	pending := make(map[string]bool)
	for _, group := range t.groups.Mine() {
		frame, err := comms.Pack(comms.TypeTriggerLiveBroadcast, comms.TriggerLiveBroadcast{
			BroadcastID:      t.req.BroadcastID,
			TransmitterGroup: group,
		})
		if err != nil {
			return err
		}
		if err := t.dacs.Send(group, frame); err != nil {
			return fmt.Errorf("cannot trigger transmitter group %s: %w", group, err)
		}
		pending[group] = true
	}
	if err := t.awaitDACs(ctx, pending, dacTriggerWait, "trigger"); err != nil {
		t.stopDACs()
		return err
	}
	return nil
}

// awaitDACs consumes DAC status frames until every pending group has
// acknowledged, a group reports failure, or the phase times out.
func (t *StreamTask) awaitDACs(ctx context.Context, pending map[string]bool, wait time.Duration, phase string) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for len(pending) > 0 {
		select {
		case s := <-t.dacCh:
			if s.BroadcastID != t.req.BroadcastID {
				continue
			}
			if !s.Ready {
				return fmt.Errorf("transmitter group %s failed to %s: %s",
					s.TransmitterGroup, phase, s.Detail)
			}
			t.groups.SetStatus(s.TransmitterGroup, StatusReady)
			delete(pending, s.TransmitterGroup)
		case <-timer.C:
			var remaining []string
			for group := range pending {
				remaining = append(remaining, group)
			}
			return fmt.Errorf("timed out waiting for transmitter group(s) %s to %s",
				strings.Join(remaining, ", "), phase)
		case <-t.stopCh:
			return fmt.Errorf("session cancelled during %s", phase)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// awaitPeers blocks until every cluster member that claimed groups has
// reported the given phase complete. A failure report from any member
// is fatal: the session must not continue with part of its transmitter
// set missing.
func (t *StreamTask) awaitPeers(ctx context.Context, state State) error {
	if len(t.peerHosts) == 0 {
		return nil
	}
	pending := make(map[string]bool, len(t.peerHosts))
	for host := range t.peerHosts {
		pending[host] = true
	}
	timer := time.NewTimer(peerStatusWait)
	defer timer.Stop()
	for len(pending) > 0 {
		select {
		case s := <-t.peerCh:
			if s.BroadcastID != t.req.BroadcastID {
				continue
			}
			if !s.Success {
				return fmt.Errorf("cluster member %s failed before %s: %s",
					s.Host, state, s.Detail)
			}
			if State(s.State) == state {
				delete(pending, s.Host)
			}
		case <-timer.C:
			var remaining []string
			for host := range pending {
				remaining = append(remaining, host)
			}
			return fmt.Errorf("timed out waiting for cluster member(s) %s to complete %s",
				strings.Join(remaining, ", "), state)
		case <-t.stopCh:
			return fmt.Errorf("session cancelled waiting for cluster members")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// livePhase tells the client to start talking and relays audio until
// a stop request, a mid-stream DAC failure, or cancellation.
func (t *StreamTask) livePhase(ctx context.Context) error {
	t.setState(StateLive)
	t.groups.SetStatusMine(StatusBusy)
	t.sendClientStatus(comms.ClientStatusReady, "")
	for {
		select {
		case env := <-t.clientCh:
			switch env.Type {
			case comms.TypeBroadcastAudio:
				var audio comms.BroadcastAudioRequest
				if err := env.Decode(&audio); err != nil {
					log.Warn().Err(err).Str("broadcast_id", t.req.BroadcastID).
						Msg("dropping unreadable audio frame")
					continue
				}
				t.relayToPeers(env)
				if err := t.relayAudio(audio); err != nil {
					return err
				}
			case comms.TypeLiveBroadcastStop:
				t.relayToPeers(env)
				return nil
			}
		case s := <-t.dacCh:
			if s.BroadcastID == t.req.BroadcastID && !s.Ready {
				return fmt.Errorf("transmitter group %s failed mid-stream: %s",
					s.TransmitterGroup, s.Detail)
			}
		case s := <-t.peerCh:
			if s.BroadcastID == t.req.BroadcastID && !s.Success {
				return fmt.Errorf("cluster member %s failed mid-stream: %s",
					s.Host, s.Detail)
			}
		case <-t.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// relayToPeers forwards a client frame verbatim to cluster members so
// their DACs stay in step with ours.
func (t *StreamTask) relayToPeers(env comms.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	t.cluster.SendDataToAll(frame)
}

// relayAudio fans one chunk out to every locally served DAC,
// synchronously. A send failure is a mid-stream failure.
func (t *StreamTask) relayAudio(audio comms.BroadcastAudioRequest) error {
	for _, group := range t.groups.Mine() {
		frame, err := comms.Pack(comms.TypeLiveBroadcastAudio, comms.LiveBroadcastAudioRequest{
			BroadcastID:      t.req.BroadcastID,
			TransmitterGroup: group,
			Audio:            audio.Audio,
		})
		if err != nil {
			return err
		}
		if err := t.dacs.Send(group, frame); err != nil {
			return fmt.Errorf("audio relay to transmitter group %s failed: %w", group, err)
		}
	}
	return nil
}

// stopDACs best-effort tears down every locally served DAC.
func (t *StreamTask) stopDACs() {
	for _, group := range t.groups.Mine() {
		frame, err := comms.Pack(comms.TypeStopLiveBroadcast, comms.StopLiveBroadcastRequest{
			BroadcastID:      t.req.BroadcastID,
			TransmitterGroup: group,
		})
		if err != nil {
			continue
		}
		if err := t.dacs.Send(group, frame); err != nil {
			log.Warn().Err(err).Str("group", group).
				Str("broadcast_id", t.req.BroadcastID).
				Msg("cannot send live broadcast stop to dac")
		}
	}
}

// abort fails the session: the client learns why, peers are told to
// abandon their member tasks, local DACs are stopped.
func (t *StreamTask) abort(err error) {
	log.Error().Err(err).Str("broadcast_id", t.req.BroadcastID).
		Str("state", string(t.State())).Msg("live broadcast session failed")
	t.sendClientStatus(comms.ClientStatusFailed, err.Error())
	t.advancePeers(StateError)
	t.stopDACs()
	t.setState(StateError)
}

// advancePeers grants cluster members permission to enter the given
// state.
func (t *StreamTask) advancePeers(next State) {
	frame, err := comms.Pack(comms.TypeTransitionTrigger, comms.TransitionTrigger{
		BroadcastID: t.req.BroadcastID,
		State:       string(next),
	})
	if err != nil {
		return
	}
	t.cluster.SendDataToAll(frame)
}

func (t *StreamTask) sendClientStatus(status, detail string) {
	if t.client == nil {
		return
	}
	frame, err := comms.Pack(comms.TypeClientStatus, comms.LiveBroadcastClientStatus{
		BroadcastID: t.req.BroadcastID,
		Status:      status,
		Detail:      detail,
	})
	if err != nil {
		return
	}
	if err := t.client.Send(frame); err != nil {
		log.Warn().Err(err).Str("broadcast_id", t.req.BroadcastID).
			Msg("cannot send status to live broadcast client")
	}
}

// notifySwitch publishes a live-broadcast switch event per locally
// served group so status consumers override their playlist views.
func (t *StreamTask) notifySwitch(state string) {
	if t.notifier == nil {
		return
	}
	for _, group := range t.groups.Mine() {
		event := notify.LiveBroadcastSwitch{
			TransmitterGroup: group,
			BroadcastID:      t.req.BroadcastID,
			State:            state,
			TransitTime:      time.Now().UTC(),
			MessageType:      t.req.MessageType,
			SameTone:         t.req.SAMETone,
		}
		if err := t.notifier.PublishLiveBroadcastSwitch(event); err != nil {
			log.Error().Err(err).Str("group", group).
				Msg("cannot publish live broadcast switch")
		}
	}
}

func (t *StreamTask) finish() {
	t.Shutdown()
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			log.Debug().Err(err).Str("broadcast_id", t.req.BroadcastID).
				Msg("client connection close")
		}
	}
	if t.finished != nil {
		t.finished(t.req.BroadcastID)
	}
}
