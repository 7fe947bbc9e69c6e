package model

import (
	"sort"
	"time"
)

// TriggerSpan is one computed playback window for a playlist, anchored
// to the trigger that activates it.
type TriggerSpan struct {
	Start   time.Time
	End     time.Time
	Trigger time.Time
}

// Playlist aggregates the broadcast messages for one
// {transmitter group, suite} pair. It is fully recomputed from the
// message set on every refresh, never patched incrementally.
type Playlist struct {
	ID                 int64     `db:"id"                   json:"id"`
	SuiteID            int       `db:"suite_id"             json:"suite_id"`
	SuiteName          string    `db:"suite_name"           json:"suite_name"`
	TransmitterGroup   string    `db:"transmitter_group"    json:"transmitter_group"`
	ModTime            time.Time `db:"mod_time"             json:"mod_time"`
	StartTime          time.Time `db:"start_time"           json:"start_time"`
	EndTime            time.Time `db:"end_time"             json:"end_time"`
	TriggerBroadcastID int64     `db:"trigger_broadcast_id" json:"trigger_broadcast_id"`

	Messages []*BroadcastMsg `db:"-" json:"messages,omitempty"`
}

// SetTimes rebuilds the playlist message order to match the suite
// definition, drops expired messages, and computes the playback
// windows from the effective/expiration times of the messages that
// count toward the window: triggers, everything in a GENERAL suite,
// or every non-static message when the suite is administratively
// forced.
//
// Zero returned spans signals that the playlist should not currently
// be played and must be deleted rather than written.
func (p *Playlist) SetTimes(ps *ProgramSuite, now time.Time) []TriggerSpan {
	suite := ps.Suite

	afosMapping := make(map[string][]*BroadcastMsg)
	for _, msg := range p.Messages {
		if msg.Expired(now) {
			continue
		}
		afosMapping[msg.AfosID()] = append(afosMapping[msg.AfosID()], msg)
	}

	var start, end, latestTrigger time.Time
	var futureTriggers []time.Time
	ordered := make([]*BroadcastMsg, 0, len(p.Messages))
	for _, sm := range suite.Messages {
		afosMessages := afosMapping[sm.AfosID]
		if len(afosMessages) == 0 {
			continue
		}
		delete(afosMapping, sm.AfosID)
		ordered = append(ordered, afosMessages...)

		static := sm.MsgType != nil && sm.MsgType.Designation.IsStatic()
		if !ps.IsTrigger(sm.AfosID) && suite.Type != SuiteGeneral &&
			!(ps.Forced && !static) {
			continue
		}
		for _, bm := range afosMessages {
			msgStart := bm.InputMessage.EffectiveTime
			msgEnd := bm.InputMessage.ExpirationTime
			if start.IsZero() || start.After(msgStart) {
				start = msgStart
			}
			if msgStart.Before(now) {
				if latestTrigger.IsZero() || latestTrigger.Before(msgStart) {
					latestTrigger = msgStart
				}
			} else {
				futureTriggers = append(futureTriggers, msgStart)
			}
			if end.IsZero() || end.Before(msgEnd) {
				end = msgEnd
			}
		}
	}
	p.Messages = ordered

	if start.IsZero() {
		p.StartTime = time.Time{}
		p.EndTime = time.Time{}
		return nil
	}
	if latestTrigger.IsZero() && len(futureTriggers) > 0 {
		latestTrigger = start
		for i, t := range futureTriggers {
			if t.Equal(start) {
				futureTriggers = append(futureTriggers[:i], futureTriggers[i+1:]...)
				break
			}
		}
	}
	p.StartTime = start
	p.EndTime = end

	if len(futureTriggers) == 0 || suite.Type == SuiteGeneral || ps.Forced {
		return []TriggerSpan{{Start: start, End: end, Trigger: latestTrigger}}
	}

	// One window per future trigger so the transmitter switches
	// playlists exactly when each trigger becomes effective.
	sort.Slice(futureTriggers, func(i, j int) bool {
		return futureTriggers[i].Before(futureTriggers[j])
	})
	spans := make([]TriggerSpan, 0, len(futureTriggers)+1)
	spans = append(spans, TriggerSpan{Start: start, End: futureTriggers[0], Trigger: latestTrigger})
	for i := 0; i < len(futureTriggers)-1; i++ {
		spans = append(spans, TriggerSpan{
			Start:   futureTriggers[i],
			End:     futureTriggers[i+1],
			Trigger: futureTriggers[i],
		})
	}
	last := futureTriggers[len(futureTriggers)-1]
	spans = append(spans, TriggerSpan{Start: last, End: end, Trigger: last})
	return spans
}
