package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/skylark/internal/model"
)

func newTestWriter(t *testing.T, store *fakeStore) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), store, "KABC")
	require.NoError(t, err)
	return w
}

func toneGroup() *model.TransmitterGroup {
	return &model.TransmitterGroup{
		ID:   1,
		Name: "OMA",
		Transmitters: []model.Transmitter{
			{ID: 1, GroupID: 1, Mnemonic: "OMA1", Enabled: true},
		},
	}
}

func toneMsg(afos, areaCodes string) *model.BroadcastMsg {
	eff := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	msg := testMsg(11, afos, "OMA", eff, eff.Add(45*time.Minute))
	msg.InputMessage.NWRSameTone = true
	msg.InputMessage.AreaCodes = areaCodes
	return msg
}

func TestBuildSameToneFiltersAreasToGroupTransmitters(t *testing.T) {
	store := newFakeStore()
	store.areas["NEC055"] = &model.Area{ID: 1, AreaCode: "NEC055", Transmitters: []int{1}}
	store.areas["IAC155"] = &model.Area{ID: 2, AreaCode: "IAC155", Transmitters: []int{2}}
	w := newTestWriter(t, store)

	tone := w.buildSameTone(toneGroup(), toneMsg("OMATORMAF", "NEC055-IAC155"))
	assert.Equal(t, "ZCZC-WXR-TOR-031055+0045-0691200-KABC////-", tone,
		"areas no group transmitter serves are left out")
}

func TestBuildSameToneExpandsZones(t *testing.T) {
	store := newFakeStore()
	store.zones["NEZ010"] = &model.Zone{
		ID:       1,
		ZoneCode: "NEZ010",
		Areas: []model.Area{
			{ID: 1, AreaCode: "NEC055", Transmitters: []int{1}},
			{ID: 2, AreaCode: "NEC056", Transmitters: []int{9}},
		},
	}
	w := newTestWriter(t, store)

	tone := w.buildSameTone(toneGroup(), toneMsg("OMATORMAF", "NEZ010"))
	assert.Equal(t, "ZCZC-WXR-TOR-031055+0045-0691200-KABC////-", tone)
}

func TestBuildSameToneDemoProduct(t *testing.T) {
	store := newFakeStore()
	w := newTestWriter(t, store)

	msg := toneMsg("OMADMOMAF", "NEC055")
	tone := w.buildSameTone(toneGroup(), msg)
	assert.Equal(t, "ZCZC-WXR-DMO-000000+0100-0691200-KABC////-", tone)
}

func TestBuildSameToneSkippedWhenNotRequested(t *testing.T) {
	store := newFakeStore()
	w := newTestWriter(t, store)

	msg := toneMsg("OMATORMAF", "NEC055")
	msg.InputMessage.NWRSameTone = false
	assert.Equal(t, "", w.buildSameTone(toneGroup(), msg))

	msg = toneMsg("OMATORMAF", "")
	assert.Equal(t, "", w.buildSameTone(toneGroup(), msg))
}

func TestBuildSameToneUnknownCodesYieldNoTone(t *testing.T) {
	store := newFakeStore()
	w := newTestWriter(t, store)

	tone := w.buildSameTone(toneGroup(), toneMsg("OMATORMAF", "NEC999"))
	assert.Equal(t, "", tone, "a header addressing no areas is not emitted")
}

func TestWriteMessageMetadataWriteOnce(t *testing.T) {
	store := newFakeStore()
	w := newTestWriter(t, store)
	group := toneGroup()

	eff := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	msg := testMsg(21, "OMASTAENG", "OMA", eff, eff.Add(time.Hour))
	msg.InputMessage.Content = "original text"

	require.NoError(t, w.WriteMessageMetadata(group, msg))

	id := model.DacPlaylistMessageID{BroadcastID: msg.ID, UpdateTime: msg.UpdateTime}
	path := filepath.Join(w.GroupDir("OMA"), "messages", id.MetadataFileName())
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(first), "original text"))

	msg.InputMessage.Content = "changed without a new update time"
	require.NoError(t, w.WriteMessageMetadata(group, msg))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "the update timestamp is the cache key")
}

func TestWriteMessageMetadataFillsPeriodicityFromType(t *testing.T) {
	store := newFakeStore()
	store.msgTypes["OMASTAENG"] = &model.MessageType{
		AfosID:            "OMASTAENG",
		Periodicity:       "00300000",
		ToneBlackoutStart: "2200",
		ToneBlackoutEnd:   "0600",
	}
	w := newTestWriter(t, store)

	eff := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	msg := testMsg(22, "OMASTAENG", "OMA", eff, eff.Add(time.Hour))
	msg.InputMessage.Periodicity = ""

	require.NoError(t, w.WriteMessageMetadata(toneGroup(), msg))

	id := model.DacPlaylistMessageID{BroadcastID: msg.ID, UpdateTime: msg.UpdateTime}
	data, err := os.ReadFile(filepath.Join(w.GroupDir("OMA"), "messages", id.MetadataFileName()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "00300000")
	assert.Contains(t, string(data), "2200")
}
