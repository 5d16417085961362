package geo

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsavell/place_scout/internal/model"
)

func TestResolveCalifornia(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	got, ok := r.Resolve("US-CA")
	require.True(t, ok)
	assert.Equal(t, model.BoundingBox{
		Southwest: model.LatLng{Lat: 32.5, Lng: -124.4},
		Northeast: model.LatLng{Lat: 42.0, Lng: -114.1},
	}, got)
}

func TestResolveUnknownCode(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, ok := r.Resolve("XX-NOPE")
	assert.False(t, ok)
}

func TestAllRegisteredBoxesValid(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	for _, code := range r.Codes() {
		box, ok := r.Resolve(code)
		require.True(t, ok, code)
		assert.True(t, box.Valid(), "box for %s violates corner invariant", code)
	}
}

func TestStateCodes(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	states := r.StateCodes()
	// 50 states plus DC.
	assert.Len(t, states, 51)
	assert.True(t, sort.StringsAreSorted(states))
	assert.Contains(t, states, "US-CA")
	for _, code := range states {
		assert.True(t, strings.HasPrefix(code, "US-"), code)
	}
}

func TestRegistryRejectsInvalidBox(t *testing.T) {
	data := []byte(`{"BAD": {"southwest": {"lat": 10, "lng": 0}, "northeast": {"lat": 5, "lng": 1}}}`)
	_, err := NewRegistryFromJSON(data)
	assert.Error(t, err)
}

func TestRegistryFromJSONSortsCodes(t *testing.T) {
	data := []byte(`{
		"US-NV": {"southwest": {"lat": 35, "lng": -120}, "northeast": {"lat": 42, "lng": -114}},
		"US-CA": {"southwest": {"lat": 32.5, "lng": -124.4}, "northeast": {"lat": 42, "lng": -114.1}},
		"FR": {"southwest": {"lat": 41.33, "lng": -5.14}, "northeast": {"lat": 51.09, "lng": 9.56}}
	}`)
	r, err := NewRegistryFromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"FR", "US-CA", "US-NV"}, r.Codes())
	assert.Equal(t, []string{"US-CA", "US-NV"}, r.StateCodes())
}
