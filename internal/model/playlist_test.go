package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setTimesNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func timedMsg(id int64, afos string, effective, expiration time.Time) *BroadcastMsg {
	return &BroadcastMsg{
		ID:      id,
		Success: true,
		InputMessage: &InputMessage{
			AfosID:         afos,
			EffectiveTime:  effective,
			ExpirationTime: expiration,
		},
	}
}

func suiteOf(typ SuiteType, designations map[string]Designation, afosIDs ...string) *Suite {
	s := &Suite{ID: 1, Name: "TestSuite", Type: typ}
	for i, afos := range afosIDs {
		sm := SuiteMessage{ID: i + 1, SuiteID: 1, Position: i, AfosID: afos}
		if d, ok := designations[afos]; ok {
			sm.MsgType = &MessageType{AfosID: afos, Designation: d}
		}
		s.Messages = append(s.Messages, sm)
	}
	return s
}

func TestSetTimesGeneralSuiteOrdersAndSpansAllMessages(t *testing.T) {
	suite := suiteOf(SuiteGeneral, nil, "OMASTAENG", "OMAMISMAF")
	ps := &ProgramSuite{Suite: suite}

	sta := timedMsg(1, "OMASTAENG", setTimesNow.Add(-time.Hour), setTimesNow.Add(2*time.Hour))
	mis := timedMsg(2, "OMAMISMAF", setTimesNow.Add(-30*time.Minute), setTimesNow.Add(time.Hour))

	p := &Playlist{Messages: []*BroadcastMsg{mis, sta}}
	spans := p.SetTimes(ps, setTimesNow)

	require.Len(t, p.Messages, 2)
	assert.Equal(t, int64(1), p.Messages[0].ID, "suite position order, not arrival order")
	assert.Equal(t, int64(2), p.Messages[1].ID)

	require.Len(t, spans, 1)
	assert.Equal(t, setTimesNow.Add(-time.Hour), spans[0].Start)
	assert.Equal(t, setTimesNow.Add(2*time.Hour), spans[0].End)
	assert.Equal(t, setTimesNow.Add(-30*time.Minute), spans[0].Trigger,
		"trigger anchors to the latest effective time before now")
	assert.Equal(t, spans[0].Start, p.StartTime)
	assert.Equal(t, spans[0].End, p.EndTime)
}

func TestSetTimesDropsExpiredMessages(t *testing.T) {
	suite := suiteOf(SuiteGeneral, nil, "OMASTAENG")
	ps := &ProgramSuite{Suite: suite}

	expired := timedMsg(1, "OMASTAENG", setTimesNow.Add(-2*time.Hour), setTimesNow.Add(-time.Hour))
	p := &Playlist{Messages: []*BroadcastMsg{expired}}

	spans := p.SetTimes(ps, setTimesNow)
	assert.Nil(t, spans)
	assert.Empty(t, p.Messages)
	assert.True(t, p.StartTime.IsZero())
	assert.True(t, p.EndTime.IsZero())
}

func TestSetTimesHighSuiteWindowComesFromTriggerOnly(t *testing.T) {
	suite := suiteOf(SuiteHigh, nil, "OMATORMAF", "OMASVRMAF")
	ps := &ProgramSuite{Suite: suite, TriggerAfosIDs: []string{"OMATORMAF"}}

	trig := timedMsg(1, "OMATORMAF", setTimesNow.Add(-10*time.Minute), setTimesNow.Add(time.Hour))
	other := timedMsg(2, "OMASVRMAF", setTimesNow.Add(-2*time.Hour), setTimesNow.Add(3*time.Hour))

	p := &Playlist{Messages: []*BroadcastMsg{other, trig}}
	spans := p.SetTimes(ps, setTimesNow)

	require.Len(t, p.Messages, 2)
	assert.Equal(t, int64(1), p.Messages[0].ID)

	require.Len(t, spans, 1)
	assert.Equal(t, setTimesNow.Add(-10*time.Minute), spans[0].Start,
		"non-trigger messages do not widen the window")
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[0].End)
	assert.Equal(t, setTimesNow.Add(-10*time.Minute), spans[0].Trigger)
}

func TestSetTimesFutureTriggerSplitsWindows(t *testing.T) {
	suite := suiteOf(SuiteHigh, nil, "OMATORMAF")
	ps := &ProgramSuite{Suite: suite, TriggerAfosIDs: []string{"OMATORMAF"}}

	active := timedMsg(1, "OMATORMAF", setTimesNow.Add(-time.Hour), setTimesNow.Add(4*time.Hour))
	future := timedMsg(2, "OMATORMAF", setTimesNow.Add(time.Hour), setTimesNow.Add(5*time.Hour))

	p := &Playlist{Messages: []*BroadcastMsg{active, future}}
	spans := p.SetTimes(ps, setTimesNow)

	require.Len(t, spans, 2)
	assert.Equal(t, setTimesNow.Add(-time.Hour), spans[0].Start)
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[0].End,
		"first window ends when the future trigger becomes effective")
	assert.Equal(t, setTimesNow.Add(-time.Hour), spans[0].Trigger)

	assert.Equal(t, setTimesNow.Add(time.Hour), spans[1].Start)
	assert.Equal(t, setTimesNow.Add(5*time.Hour), spans[1].End)
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[1].Trigger)
}

func TestSetTimesEntirelyFutureTriggerAnchorsToStart(t *testing.T) {
	suite := suiteOf(SuiteGeneral, nil, "OMASTAENG")
	ps := &ProgramSuite{Suite: suite}

	future := timedMsg(1, "OMASTAENG", setTimesNow.Add(time.Hour), setTimesNow.Add(2*time.Hour))
	p := &Playlist{Messages: []*BroadcastMsg{future}}

	spans := p.SetTimes(ps, setTimesNow)
	require.Len(t, spans, 1)
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[0].Start)
	assert.Equal(t, setTimesNow.Add(2*time.Hour), spans[0].End)
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[0].Trigger)
}

func TestSetTimesForcedSuiteCountsNonStaticMessages(t *testing.T) {
	suite := suiteOf(SuiteHigh,
		map[string]Designation{"OMASTAENG": DesignationStationID},
		"OMASTAENG", "OMASVRMAF")
	ps := &ProgramSuite{Suite: suite, Forced: true}

	static := timedMsg(1, "OMASTAENG", setTimesNow.Add(-3*time.Hour), setTimesNow.Add(3*time.Hour))
	svr := timedMsg(2, "OMASVRMAF", setTimesNow.Add(-time.Hour), setTimesNow.Add(time.Hour))

	p := &Playlist{Messages: []*BroadcastMsg{static, svr}}
	spans := p.SetTimes(ps, setTimesNow)

	require.Len(t, spans, 1)
	assert.Equal(t, setTimesNow.Add(-time.Hour), spans[0].Start,
		"static messages do not set the window even when forced")
	assert.Equal(t, setTimesNow.Add(time.Hour), spans[0].End)
}

func TestSetTimesForcedSuiteWithOnlyStaticMessagesHasNoWindow(t *testing.T) {
	suite := suiteOf(SuiteHigh,
		map[string]Designation{"OMASTAENG": DesignationStationID}, "OMASTAENG")
	ps := &ProgramSuite{Suite: suite, Forced: true}

	static := timedMsg(1, "OMASTAENG", setTimesNow.Add(-3*time.Hour), setTimesNow.Add(3*time.Hour))
	p := &Playlist{Messages: []*BroadcastMsg{static}}

	assert.Nil(t, p.SetTimes(ps, setTimesNow))
	assert.Len(t, p.Messages, 1, "static content still plays, it just cannot anchor a window")
}

func TestBroadcastMsgExpired(t *testing.T) {
	msg := timedMsg(1, "OMASTAENG", setTimesNow.Add(-time.Hour), setTimesNow.Add(time.Hour))
	assert.False(t, msg.Expired(setTimesNow))
	assert.True(t, msg.Expired(setTimesNow.Add(2*time.Hour)))

	msg.ForcedExpiration = true
	assert.True(t, msg.Expired(setTimesNow))

	orphan := &BroadcastMsg{ID: 2}
	assert.True(t, orphan.Expired(setTimesNow))
}
