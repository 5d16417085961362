package model

import "github.com/paulmach/orb"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is an axis-aligned lat/lng rectangle. The southwest corner
// must be strictly south and west of the northeast corner.
type BoundingBox struct {
	Southwest LatLng `json:"southwest"`
	Northeast LatLng `json:"northeast"`
}

// Bound converts the box to an orb.Bound. orb points are [lng, lat].
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Southwest.Lng, b.Southwest.Lat},
		Max: orb.Point{b.Northeast.Lng, b.Northeast.Lat},
	}
}

// FromBound builds a BoundingBox from an orb.Bound.
func FromBound(bd orb.Bound) BoundingBox {
	return BoundingBox{
		Southwest: LatLng{Lat: bd.Min.Lat(), Lng: bd.Min.Lon()},
		Northeast: LatLng{Lat: bd.Max.Lat(), Lng: bd.Max.Lon()},
	}
}

// Valid reports whether the corner invariant holds.
func (b BoundingBox) Valid() bool {
	bd := b.Bound()
	return bd.Min.Lat() < bd.Max.Lat() && bd.Min.Lon() < bd.Max.Lon()
}

// NotAvailable is written for place fields the upstream response omits.
const NotAvailable = "N/A"

// PlaceRecord is one place row in a specific-location result.
type PlaceRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

// Mode selects how a job's queries are aggregated.
type Mode string

const (
	// ModeSpecificLocation lists full place records within one region.
	ModeSpecificLocation Mode = "specific-location"
	// ModeSpecificCount produces one count per query within one region.
	ModeSpecificCount Mode = "specific-count"
	// ModeStateCount produces one count per query per registered US state.
	ModeStateCount Mode = "state-count"
)

// ParseMode maps a user-supplied string to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSpecificLocation, ModeSpecificCount, ModeStateCount:
		return Mode(s), true
	}
	return "", false
}

// CountRow is one row of a specific-count result.
type CountRow struct {
	Query    string
	Location string
	Count    int
}

// StateCountRow is one row of a state-count result.
type StateCountRow struct {
	Query  string
	Counts map[string]int // keyed by US-XX state code
}

// Table is the aggregation result handed off for serialization. Which row
// slice is populated depends on Mode. It is never mutated after the
// aggregator returns it.
type Table struct {
	Mode       Mode
	Places     []PlaceRecord
	Counts     []CountRow
	StateRows  []StateCountRow
	StateCodes []string // column order for state-count rows
}

// JobParams holds the per-job settings carried from submission to the worker.
type JobParams struct {
	Mode         Mode
	LocationCode string
	Category     string
	Deep         bool
}

// JobState is the lifecycle state of a submitted job.
type JobState string

const (
	JobPending  JobState = "pending"
	JobRunning  JobState = "running"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)
