package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsavell/place_scout/internal/model"
)

func parseCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSVPlaces(t *testing.T) {
	table := &model.Table{
		Mode: model.ModeSpecificLocation,
		Places: []model.PlaceRecord{
			{Name: "First Cafe", Address: "1 Main St", Phone: "+1 555 0100", Website: "https://first.example"},
			{Name: "Second Cafe", Address: "2 Main St", Phone: "N/A", Website: "N/A"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Place Name", "Address", "Phone", "Website"}, rows[0])
	assert.Equal(t, []string{"First Cafe", "1 Main St", "+1 555 0100", "https://first.example"}, rows[1])
	assert.Equal(t, []string{"Second Cafe", "2 Main St", "N/A", "N/A"}, rows[2])
}

func TestWriteCSVCounts(t *testing.T) {
	table := &model.Table{
		Mode: model.ModeSpecificCount,
		Counts: []model.CountRow{
			{Query: "cafe", Location: "US-CA", Count: 42},
			{Query: "bar", Location: "US-CA", Count: 0},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Place Name", "Location", "Count"}, rows[0])
	assert.Equal(t, []string{"cafe", "US-CA", "42"}, rows[1])
	assert.Equal(t, []string{"bar", "US-CA", "0"}, rows[2])
}

func TestWriteCSVStateCounts(t *testing.T) {
	table := &model.Table{
		Mode:       model.ModeStateCount,
		StateCodes: []string{"US-CA", "US-NV"},
		StateRows: []model.StateCountRow{
			{Query: "cafe", Counts: map[string]int{"US-CA": 7, "US-NV": 2}},
			// A missing state entry zero-fills rather than shifting columns.
			{Query: "bar", Counts: map[string]int{"US-CA": 1}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	rows := parseCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Place Name", "US-CA", "US-NV"}, rows[0])
	assert.Equal(t, []string{"cafe", "7", "2"}, rows[1])
	assert.Equal(t, []string{"bar", "1", "0"}, rows[2])
}

func TestWriteCSVUnknownMode(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, &model.Table{Mode: model.Mode("bogus")})
	assert.Error(t, err)
}
