package same

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFullHeader(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetEventFromAfosID("OMATORMAF"))
	require.NoError(t, b.AddAreaFromUGC("NEC055"))
	b.SetEffectiveTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	b.SetExpireTime(time.Date(2026, 3, 10, 12, 45, 0, 0, time.UTC))
	b.SetCallsign("KABC")

	header, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "ZCZC-WXR-TOR-031055+0045-0691200-KABC////-", header)
}

func TestBuildMultipleAreas(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetEventFromAfosID("OMASVRMAF"))
	require.NoError(t, b.AddAreaFromUGC("NEC055"))
	require.NoError(t, b.AddAreaFromUGC("IAC155"))
	b.SetEffectiveTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	b.SetExpireTime(time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))
	b.SetCallsign("KABC")

	header, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "ZCZC-WXR-SVR-031055-019155+0100-0691200-KABC////-", header)
}

func TestBuildRequiresEventAndAreas(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build()
	assert.ErrorIs(t, err, ErrNoEvent)

	require.NoError(t, b.SetEventFromAfosID("OMATORMAF"))
	_, err = b.Build()
	assert.Error(t, err)
}

func TestSetEventFromAfosIDTooShort(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, b.SetEventFromAfosID("OMA"))
}

func TestAddAreaFromUGCValidation(t *testing.T) {
	b := NewBuilder()
	assert.ErrorIs(t, b.AddAreaFromUGC("NEC55"), ErrBadUGC)
	assert.ErrorIs(t, b.AddAreaFromUGC("XXC055"), ErrBadUGC)
}

func TestAddAreaFromUGCLimit(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 31; i++ {
		require.NoError(t, b.AddAreaFromUGC(fmt.Sprintf("NEC%03d", i+1)))
	}
	assert.ErrorIs(t, b.AddAreaFromUGC("NEC099"), ErrTooManyAreas)
}

func TestPurgeTimeRounding(t *testing.T) {
	eff := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Minute, "0045"},
		{50 * time.Minute, "0100"},
		{2*time.Hour + 10*time.Minute, "0230"},
		{7*time.Hour + 5*time.Minute, "0800"},
		{200 * time.Hour, "9900"},
		{-time.Hour, "0000"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, purgeTime(eff, eff.Add(tc.d)), "duration %s", tc.d)
	}
}

func TestPadCallsign(t *testing.T) {
	assert.Equal(t, "KABC////", padCallsign("KABC"))
	assert.Equal(t, "WXL29OMA", padCallsign("WXL29OMAHA"))
}

func TestDemoTone(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 34, 0, 0, time.UTC)
	assert.Equal(t, "ZCZC-WXR-DMO-000000+0100-0691234-KABC////-", DemoTone("KABC", now))
}

func TestIsDemoAfosID(t *testing.T) {
	assert.True(t, IsDemoAfosID("OMADMOMAF"))
	assert.False(t, IsDemoAfosID("OMATORMAF"))
	assert.False(t, IsDemoAfosID("OMA"))
}
