package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMRDEmpty(t *testing.T) {
	mrd, err := ParseMRD("")
	require.NoError(t, err)
	assert.Equal(t, NoMRDID, mrd.ID)
	assert.Empty(t, mrd.Replaces)
	assert.Empty(t, mrd.Follows)
	assert.Equal(t, "", mrd.String())
}

func TestParseMRDFullDirective(t *testing.T) {
	mrd, err := ParseMRD("120R118R119F117")
	require.NoError(t, err)
	assert.Equal(t, 120, mrd.ID)
	assert.Equal(t, []int{118, 119}, mrd.Replaces)
	assert.Equal(t, []int{117}, mrd.Follows)
}

func TestParseMRDCommaSeparatedLists(t *testing.T) {
	mrd, err := ParseMRD("120R118,119F115,116")
	require.NoError(t, err)
	assert.Equal(t, 120, mrd.ID)
	assert.Equal(t, []int{118, 119}, mrd.Replaces)
	assert.Equal(t, []int{115, 116}, mrd.Follows)
}

func TestParseMRDIDOnly(t *testing.T) {
	mrd, err := ParseMRD("42")
	require.NoError(t, err)
	assert.Equal(t, 42, mrd.ID)
	assert.Empty(t, mrd.Replaces)
	assert.Empty(t, mrd.Follows)
	assert.Equal(t, "42", mrd.String())
}

func TestParseMRDFollowsOnly(t *testing.T) {
	mrd, err := ParseMRD("7F3")
	require.NoError(t, err)
	assert.Equal(t, 7, mrd.ID)
	assert.Empty(t, mrd.Replaces)
	assert.Equal(t, []int{3}, mrd.Follows)
}

func TestParseMRDMalformed(t *testing.T) {
	_, err := ParseMRD("xyz")
	assert.Error(t, err)

	_, err = ParseMRD("12Rabc")
	assert.Error(t, err)
}

func TestMRDStringCanonicalForm(t *testing.T) {
	mrd := MRD{ID: 120, Replaces: []int{118, 119}, Follows: []int{117}}
	assert.Equal(t, "120R118,119F117", mrd.String())

	reparsed, err := ParseMRD(mrd.String())
	require.NoError(t, err)
	assert.Equal(t, mrd, reparsed)
}

func TestInputMessageMRDSwallowsBadDirective(t *testing.T) {
	im := InputMessage{MRDRaw: "not-an-mrd"}
	assert.Equal(t, NoMRDID, im.MRD().ID)
}
