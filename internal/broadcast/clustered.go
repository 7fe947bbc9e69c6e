package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/comms"
	"github.com/skylark-radio/skylark/internal/notify"
)

// transitionWait bounds how long a member waits at each gate. The
// primary's own phases are bounded, so a silent gate means the
// primary or the link is gone.
const transitionWait = 30 * time.Second

// ClusteredStreamTask serves one session's transmitter groups on a
// process that does not hold the client socket. It performs the same
// DAC phases as the primary but blocks at a transition gate before
// each one, advancing only when the primary grants it, so tone
// playback starts at the same point in logical time on every cluster
// member.
type ClusteredStreamTask struct {
	task *StreamTask
	host string
	gate chan comms.TransitionTrigger
}

func NewClusteredStreamTask(req comms.StartLiveBroadcastRequest, host string, dacs DACLink, cluster Cluster, notifier Notifier, finished func(string)) *ClusteredStreamTask {
	return &ClusteredStreamTask{
		task: NewStreamTask(req, dacs, cluster, notifier, nil, finished),
		host: host,
		gate: make(chan comms.TransitionTrigger, 4),
	}
}

func (c *ClusteredStreamTask) BroadcastID() string { return c.task.BroadcastID() }
func (c *ClusteredStreamTask) State() State        { return c.task.State() }

func (c *ClusteredStreamTask) DeliverClient(env comms.Envelope)            { c.task.DeliverClient(env) }
func (c *ClusteredStreamTask) DeliverDACStatus(s comms.LiveBroadcastStatus) { c.task.DeliverDACStatus(s) }
func (c *ClusteredStreamTask) DeliverClaim(comms.GroupsClaim)              {}
func (c *ClusteredStreamTask) DeliverPeerStatus(comms.BroadcastStatus)     {}

// DeliverTransition releases the gate for one state advance.
func (c *ClusteredStreamTask) DeliverTransition(tr comms.TransitionTrigger) {
	select {
	case c.gate <- tr:
	case <-c.task.stopCh:
	}
}

// Shutdown cancels the member task; a goroutine blocked at the gate
// is released through the shared stop channel.
func (c *ClusteredStreamTask) Shutdown() { c.task.Shutdown() }

// Run executes the member side of the session.
func (c *ClusteredStreamTask) Run(ctx context.Context) {
	t := c.task
	defer t.finish()

	mine := t.groups.ClaimLocal(t.dacs)
	if len(mine) == 0 {
		log.Debug().Str("broadcast_id", t.req.BroadcastID).
			Msg("no locally reachable transmitter groups for peer session")
		return
	}
	frame, err := comms.Pack(comms.TypeGroupsClaim, comms.GroupsClaim{
		BroadcastID:       t.req.BroadcastID,
		Host:              c.host,
		TransmitterGroups: mine,
	})
	if err != nil {
		return
	}
	t.cluster.SendDataToAll(frame)
	log.Info().Str("broadcast_id", t.req.BroadcastID).Strs("groups", mine).
		Msg("claimed transmitter groups for peer live broadcast")

	if err := c.awaitTransition(ctx, StateReady); err != nil {
		c.memberAbort(err)
		return
	}
	if err := t.readyPhase(ctx); err != nil {
		c.memberAbort(err)
		return
	}
	c.reportStatus(StateReady, true, "")
	if err := c.awaitTransition(ctx, StateTrigger); err != nil {
		c.memberAbort(err)
		return
	}
	if err := t.triggerPhase(ctx); err != nil {
		c.memberAbort(err)
		return
	}
	c.reportStatus(StateTrigger, true, "")
	if err := c.awaitTransition(ctx, StateLive); err != nil {
		c.memberAbort(err)
		return
	}
	t.notifySwitch(notify.LiveBroadcastStarted)

	if err := c.memberLive(ctx); err != nil {
		log.Error().Err(err).Str("broadcast_id", t.req.BroadcastID).
			Msg("peer live broadcast terminated abnormally")
		c.reportStatus(StateLive, false, err.Error())
	}
	t.setState(StateStop)
	t.stopDACs()
	t.notifySwitch(notify.LiveBroadcastEnded)
}

// awaitTransition blocks until the primary grants the wanted state.
// An ERROR grant or a mismatched state means the primary abandoned
// the session.
func (c *ClusteredStreamTask) awaitTransition(ctx context.Context, want State) error {
	timer := time.NewTimer(transitionWait)
	defer timer.Stop()
	select {
	case tr := <-c.gate:
		if State(tr.State) == StateError {
			return fmt.Errorf("primary aborted session before %s", want)
		}
		if State(tr.State) != want {
			return fmt.Errorf("expected transition to %s, primary sent %s", want, tr.State)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("timed out waiting for permission to enter %s", want)
	case <-c.task.stopCh:
		return fmt.Errorf("session cancelled while waiting for %s", want)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// memberLive consumes audio frames relayed by the primary until the
// primary signals STOP, relays a stop frame, or a local DAC fails.
func (c *ClusteredStreamTask) memberLive(ctx context.Context) error {
	t := c.task
	t.setState(StateLive)
	for {
		select {
		case env := <-t.clientCh:
			switch env.Type {
			case comms.TypeBroadcastAudio:
				var audio comms.BroadcastAudioRequest
				if err := env.Decode(&audio); err != nil {
					log.Warn().Err(err).Str("broadcast_id", t.req.BroadcastID).
						Msg("dropping unreadable relayed audio frame")
					continue
				}
				if err := t.relayAudio(audio); err != nil {
					return err
				}
			case comms.TypeLiveBroadcastStop:
				return nil
			}
		case tr := <-c.gate:
			if State(tr.State) == StateStop || State(tr.State) == StateError {
				return nil
			}
		case s := <-t.dacCh:
			if s.BroadcastID == t.req.BroadcastID && !s.Ready {
				return fmt.Errorf("transmitter group %s failed mid-stream: %s",
					s.TransmitterGroup, s.Detail)
			}
		case <-t.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *ClusteredStreamTask) memberAbort(err error) {
	t := c.task
	log.Error().Err(err).Str("broadcast_id", t.req.BroadcastID).
		Str("state", string(t.State())).Msg("peer live broadcast session failed")
	c.reportStatus(t.State(), false, err.Error())
	t.stopDACs()
	t.setState(StateError)
}

// reportStatus tells the primary how this member fared in a phase.
// The primary holds its own transition gate until every claimed host
// has reported the phase complete, and tears the session down on the
// first failure report.
func (c *ClusteredStreamTask) reportStatus(state State, success bool, detail string) {
	frame, err := comms.Pack(comms.TypeBroadcastStatus, comms.BroadcastStatus{
		BroadcastID: c.task.req.BroadcastID,
		Host:        c.host,
		State:       string(state),
		Success:     success,
		Detail:      detail,
	})
	if err != nil {
		return
	}
	c.task.cluster.SendDataToAll(frame)
}
