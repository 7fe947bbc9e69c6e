package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MRD is the compact ordering directive attached to an input message:
// a unique message id plus the ids of other messages it replaces and
// the ids of messages it must play immediately after. The wire form is
// "id[Rid,id...][Fid,id...]", e.g. "120R118R119F117".
type MRD struct {
	ID       int
	Replaces []int
	Follows  []int
}

// NoMRDID marks a message that carries no MRD directive.
const NoMRDID = -1

// ParseMRD decodes the raw MRD field of an input message. An empty
// field yields an MRD with ID set to NoMRDID and no rules.
func ParseMRD(raw string) (MRD, error) {
	mrd := MRD{ID: NoMRDID}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return mrd, nil
	}

	rest := raw
	fIdx := strings.IndexByte(rest, 'F')
	var followsPart string
	if fIdx >= 0 {
		followsPart = rest[fIdx+1:]
		rest = rest[:fIdx]
	}
	var replacesPart string
	rIdx := strings.IndexByte(rest, 'R')
	if rIdx >= 0 {
		replacesPart = rest[rIdx+1:]
		rest = rest[:rIdx]
	}

	if rest != "" {
		id, err := strconv.Atoi(rest)
		if err != nil {
			return mrd, fmt.Errorf("invalid mrd id %q: %w", rest, err)
		}
		mrd.ID = id
	}
	var err error
	if mrd.Replaces, err = parseIDList(replacesPart, 'R'); err != nil {
		return mrd, err
	}
	if mrd.Follows, err = parseIDList(followsPart, 'F'); err != nil {
		return mrd, err
	}
	return mrd, nil
}

func parseIDList(part string, sep byte) ([]int, error) {
	if part == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(part, func(r rune) bool {
		return r == rune(sep) || r == ','
	})
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid mrd list entry %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// String renders the MRD back into its wire form.
func (m MRD) String() string {
	if m.ID == NoMRDID {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(m.ID))
	for i, id := range m.Replaces {
		if i == 0 {
			sb.WriteByte('R')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	for i, id := range m.Follows {
		if i == 0 {
			sb.WriteByte('F')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}
