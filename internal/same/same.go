// Package same encodes SAME (Specific Area Message Encoding) header
// text for tone generation. The downstream transmitter turns the text
// into the actual AFSK tones; this package only assembles the header
// string from event metadata and resolved area codes.
package same

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// A SAME header addresses at most 31 location codes.
const maxAreas = 31

// DefaultOriginator identifies a weather radio transmission.
const DefaultOriginator = "WXR"

var (
	ErrTooManyAreas = errors.New("same: header cannot address more than 31 areas")
	ErrNoEvent      = errors.New("same: no event code set")
	ErrBadUGC       = errors.New("same: unparseable UGC code")
)

// stateFips maps UGC state letters to FIPS state codes for the
// PSSCCC location field.
var stateFips = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72", "VI": "78", "GU": "66", "AS": "60",
	"MP": "69",
}

// Builder assembles one SAME header.
type Builder struct {
	originator string
	event      string
	callsign   string
	areas      []string
	effective  time.Time
	expire     time.Time
}

func NewBuilder() *Builder {
	return &Builder{originator: DefaultOriginator}
}

func (b *Builder) SetOriginator(originator string) { b.originator = originator }

// SetEventFromAfosID derives the three-letter SAME event code from the
// NNN portion of a CCCNNNXXX AFOS id.
func (b *Builder) SetEventFromAfosID(afosID string) error {
	if len(afosID) < 6 {
		return fmt.Errorf("same: afos id %q too short for event code", afosID)
	}
	b.event = afosID[3:6]
	return nil
}

// AddAreaFromUGC appends the PSSCCC location code for a county UGC
// such as NEC055.
func (b *Builder) AddAreaFromUGC(ugc string) error {
	if len(b.areas) >= maxAreas {
		return ErrTooManyAreas
	}
	if len(ugc) != 6 {
		return fmt.Errorf("%w: %q", ErrBadUGC, ugc)
	}
	fips, ok := stateFips[ugc[:2]]
	if !ok {
		return fmt.Errorf("%w: unknown state in %q", ErrBadUGC, ugc)
	}
	b.areas = append(b.areas, "0"+fips+ugc[3:])
	return nil
}

func (b *Builder) SetEffectiveTime(t time.Time) { b.effective = t }
func (b *Builder) SetExpireTime(t time.Time)    { b.expire = t }
func (b *Builder) SetCallsign(callsign string)  { b.callsign = callsign }

// Build renders the header:
// ZCZC-ORG-EEE-PSSCCC(-PSSCCC…)+TTTT-JJJHHMM-LLLLLLLL-
func (b *Builder) Build() (string, error) {
	if b.event == "" {
		return "", ErrNoEvent
	}
	if len(b.areas) == 0 {
		return "", errors.New("same: no areas to address")
	}

	var sb strings.Builder
	sb.WriteString("ZCZC-")
	sb.WriteString(b.originator)
	sb.WriteByte('-')
	sb.WriteString(b.event)
	for _, area := range b.areas {
		sb.WriteByte('-')
		sb.WriteString(area)
	}
	sb.WriteByte('+')
	sb.WriteString(purgeTime(b.effective, b.expire))
	sb.WriteByte('-')
	eff := b.effective.UTC()
	fmt.Fprintf(&sb, "%03d%02d%02d", eff.YearDay(), eff.Hour(), eff.Minute())
	sb.WriteByte('-')
	sb.WriteString(padCallsign(b.callsign))
	sb.WriteByte('-')
	return sb.String(), nil
}

// purgeTime renders the valid period as HHMM, rounded up to the SAME
// increments: 15 minutes below one hour, 30 minutes up to six hours,
// whole hours beyond.
func purgeTime(effective, expire time.Time) string {
	d := expire.Sub(effective)
	if d < 0 {
		d = 0
	}
	var stepped time.Duration
	switch {
	case d <= time.Hour:
		stepped = roundUp(d, 15*time.Minute)
	case d <= 6*time.Hour:
		stepped = roundUp(d, 30*time.Minute)
	default:
		stepped = roundUp(d, time.Hour)
	}
	if stepped > 99*time.Hour {
		stepped = 99 * time.Hour
	}
	hours := int(stepped / time.Hour)
	minutes := int(stepped % time.Hour / time.Minute)
	return fmt.Sprintf("%02d%02d", hours, minutes)
}

func roundUp(d, step time.Duration) time.Duration {
	if d%step == 0 {
		return d
	}
	return (d/step + 1) * step
}

func padCallsign(callsign string) string {
	if len(callsign) >= 8 {
		return callsign[:8]
	}
	return callsign + strings.Repeat("/", 8-len(callsign))
}

// DemoTone is the canned header used for demo message types, which
// address no real areas.
func DemoTone(callsign string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("ZCZC-%s-DMO-000000+0100-%03d%02d%02d-%s-",
		DefaultOriginator, now.YearDay(), now.Hour(), now.Minute(),
		padCallsign(callsign))
}

// IsDemoAfosID reports whether the AFOS id names a demo product.
func IsDemoAfosID(afosID string) bool {
	return len(afosID) >= 6 && afosID[3:6] == "DMO"
}
