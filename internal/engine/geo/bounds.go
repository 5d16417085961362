package geo

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rsavell/place_scout/internal/model"
)

//go:embed data/location_bounds.json
var boundsFS embed.FS

// statePrefix marks US state codes in the bounds table.
const statePrefix = "US-"

// Registry maps location codes (country ISO codes and US-XX state codes) to
// bounding boxes. Loaded once at startup and read-only afterwards, so it is
// safe to share across concurrently running jobs.
type Registry struct {
	boxes map[string]model.BoundingBox
	codes []string // sorted for deterministic iteration
}

// NewRegistry loads the embedded location bounds table.
func NewRegistry() (*Registry, error) {
	data, err := boundsFS.ReadFile("data/location_bounds.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded bounds: %w", err)
	}
	return NewRegistryFromJSON(data)
}

// NewRegistryFromJSON builds a registry from a JSON bounds table. Every box
// must satisfy the corner invariant; a bad entry is a configuration error.
func NewRegistryFromJSON(data []byte) (*Registry, error) {
	var boxes map[string]model.BoundingBox
	if err := json.Unmarshal(data, &boxes); err != nil {
		return nil, fmt.Errorf("parsing bounds table: %w", err)
	}

	codes := make([]string, 0, len(boxes))
	for code, box := range boxes {
		if !box.Valid() {
			return nil, fmt.Errorf("bounds for %q: southwest corner must be strictly south-west of northeast", code)
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return &Registry{boxes: boxes, codes: codes}, nil
}

// Resolve returns the bounding box for a location code. The second return is
// false for unregistered codes; callers decide whether that means
// "unrestricted" or "count zero".
func (r *Registry) Resolve(code string) (model.BoundingBox, bool) {
	box, ok := r.boxes[code]
	return box, ok
}

// Codes returns every registered location code in sorted order.
func (r *Registry) Codes() []string {
	return r.codes
}

// StateCodes returns the registered US state codes in sorted order. This is
// the column order for state-count results.
func (r *Registry) StateCodes() []string {
	var states []string
	for _, code := range r.codes {
		if strings.HasPrefix(code, statePrefix) {
			states = append(states, code)
		}
	}
	return states
}
