package calmodels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaarsFlux(t *testing.T) {
	tbl, err := NewTable()
	require.NoError(t, err)

	f, err := tbl.Flux("3c286", 1420)
	require.NoError(t, err)
	assert.InDelta(t, 14.733, f, 1e-3)

	_, err = tbl.Flux("3c286", 100)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = tbl.Flux("DR21", 40000)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestCasA(t *testing.T) {
	f, err := CasA{Year: 1980}.Flux(1420)
	require.NoError(t, err)
	assert.InDelta(t, 2078.44, f, 1e-2)

	f, err = CasA{Year: 2007.8}.Flux(1420)
	require.NoError(t, err)
	assert.InDelta(t, 1605.55, f, 1e-2)

	tbl, err := NewTable(WithCasA(2007.8))
	require.NoError(t, err)
	g, err := tbl.Flux(CasAName, 1420)
	require.NoError(t, err)
	assert.Equal(t, f, g)

	_, err = CasA{Year: 2000}.Flux(0)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestCasANeedsYear(t *testing.T) {
	tbl, err := NewTable()
	require.NoError(t, err)
	_, err = tbl.Flux(CasAName, 1420)
	assert.True(t, errors.Is(err, ErrMissingYear))

	f, err := tbl.FluxAt(CasAName, 1420, 1980)
	require.NoError(t, err)
	assert.InDelta(t, 2078.44, f, 1e-2)
}

func TestVLAModel(t *testing.T) {
	m, err := ModelFromVLA(15, 7.5)
	require.NoError(t, err)
	assert.InDelta(t, -0.575717, m.Index, 1e-6)
	assert.InDelta(t, 3.004447, m.Offset, 1e-6)

	tbl, err := NewTable(WithVLA("J0000+0000", 15, 7.5))
	require.NoError(t, err)
	f, err := tbl.Flux("J0000+0000", SpeedOfLight/20/1e6)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, f, 1e-9)

	_, err = ModelFromVLA(0, 1)
	assert.Error(t, err)
}

func TestTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable(WithVLA("3c48", 15, 7.5))
	assert.True(t, errors.Is(err, ErrDuplicateSource))
}

func TestUnknownSource(t *testing.T) {
	tbl, err := NewTable()
	require.NoError(t, err)
	_, err = tbl.Flux("3c999", 1420)
	require.True(t, errors.Is(err, ErrUnknownSource))
	assert.Contains(t, err.Error(), "3c286")
}

func TestSourcesSorted(t *testing.T) {
	tbl, err := NewTable(WithCasA(2000))
	require.NoError(t, err)
	src := tbl.Sources()
	assert.Len(t, src, 14)
	assert.IsIncreasing(t, src)
	assert.Contains(t, src, CasAName)
}
