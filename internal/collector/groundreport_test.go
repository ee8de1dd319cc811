package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

const reportFixture = `{
  "reports": [
    {
      "date": "2024-05-03",
      "time": "2015",
      "type": "hail",
      "size": "175",
      "lat": "33.47",
      "lon": "-112.07",
      "location": "2 N PHOENIX",
      "comments": "Golf ball sized hail reported. (PSR)"
    },
    {
      "date": "2024-05-03",
      "time": "930",
      "type": "wind",
      "speed": "UNK",
      "lat": "33.43",
      "lon": "-112.01",
      "location": "TEMPE",
      "comments": "Tree limbs down."
    },
    {
      "date": "2024-05-04",
      "time": "1102",
      "type": "tornado",
      "f_scale": "EF1",
      "lat": "33.30",
      "lon": "-111.84",
      "location": "3 SE CHANDLER",
      "comments": "Brief touchdown. (PSR)"
    },
    {
      "date": "2024-05-03",
      "time": "1200",
      "type": "hail",
      "size": "1.25",
      "lat": "",
      "lon": "",
      "location": "UNKNOWN",
      "comments": "No coordinates."
    }
  ]
}`

func TestGroundReportClient_FetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports", r.URL.Path)
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-05-07", r.URL.Query().Get("end"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reportFixture))
	}))
	defer srv.Close()

	c := NewGroundReportClient(srv.URL, 5*time.Second, testLogger())
	events, err := c.FetchEvents(context.Background(), testBBox, testWindow)
	require.NoError(t, err)
	require.Len(t, events, 3, "the record without coordinates must be dropped")

	hail := events[0]
	assert.Equal(t, domain.SourceGroundReport, hail.Source)
	assert.Equal(t, domain.EventHailReport, hail.EventType)
	assert.Equal(t, time.Date(2024, 5, 3, 20, 15, 0, 0, time.UTC), hail.OccurredAt)
	require.NotNil(t, hail.Magnitude)
	assert.Equal(t, 1.75, *hail.Magnitude, "hundredths-of-inch encoding corrected")
	assert.Equal(t, domain.Geo{Lat: 33.47, Lon: -112.07}, hail.Geometry.Points[0])
	assert.Equal(t, "PSR", hail.Metadata["source_office"])
	assert.Equal(t, 1.0, hail.QualityScore)
	assert.True(t, strings.HasPrefix(hail.ID, "lsr-"))

	wind := events[1]
	assert.Equal(t, domain.EventWindReport, wind.EventType)
	assert.Nil(t, wind.Magnitude, "UNK speed yields no magnitude")
	assert.Equal(t, time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC), wind.OccurredAt, "three-digit HHMM zero-padded")
	assert.NotContains(t, wind.Metadata, "source_office")

	tornado := events[2]
	assert.Equal(t, domain.EventTornadoReport, tornado.EventType)
	require.NotNil(t, tornado.Magnitude)
	assert.Equal(t, 1.0, *tornado.Magnitude, "EF prefix stripped")
}

func TestGroundReportClient_DeterministicIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(reportFixture))
	}))
	defer srv.Close()

	c := NewGroundReportClient(srv.URL, 5*time.Second, testLogger())
	first, err := c.FetchEvents(context.Background(), testBBox, testWindow)
	require.NoError(t, err)
	second, err := c.FetchEvents(context.Background(), testBBox, testWindow)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestReportMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		rec      reportRecord
		wantType string
		wantMag  *float64
	}{
		{"hail in hundredths", reportRecord{Type: "hail", Size: "125"}, domain.EventHailReport, ptr(1.25)},
		{"hail in inches", reportRecord{Type: "hail", Size: "1.75"}, domain.EventHailReport, ptr(1.75)},
		{"wind mph", reportRecord{Type: "wind", Speed: "65"}, domain.EventWindReport, ptr(65)},
		{"tornado EF prefix", reportRecord{Type: "tornado", FScale: "EF2"}, domain.EventTornadoReport, ptr(2)},
		{"tornado F prefix", reportRecord{Type: "tornado", FScale: "F3"}, domain.EventTornadoReport, ptr(3)},
		{"unknown sentinel", reportRecord{Type: "wind", Speed: "UNK"}, domain.EventWindReport, nil},
		{"empty magnitude", reportRecord{Type: "hail", Size: ""}, domain.EventHailReport, nil},
		{"unrecognized type", reportRecord{Type: "dust"}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotMag := reportMagnitude(tt.rec)
			assert.Equal(t, tt.wantType, gotType)
			if tt.wantMag == nil {
				assert.Nil(t, gotMag)
			} else {
				require.NotNil(t, gotMag)
				assert.Equal(t, *tt.wantMag, *gotMag)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	baseDate := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		hhmm     string
		expected time.Time
	}{
		{"four digits", "1510", time.Date(2024, 5, 3, 15, 10, 0, 0, time.UTC)},
		{"three digits", "930", time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC)},
		{"midnight", "0000", baseDate},
		{"empty", "", baseDate},
		{"too short", "12", baseDate},
		{"invalid hour", "2510", baseDate},
		{"invalid minute", "1275", baseDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseHHMM(baseDate, tt.hhmm))
		})
	}
}

func TestExtractSourceOffice(t *testing.T) {
	assert.Equal(t, "PSR", extractSourceOffice("Golf ball hail. (PSR)"))
	assert.Equal(t, "OUN", extractSourceOffice("Large hail reported. (OUN) "))
	assert.Empty(t, extractSourceOffice("No office code here"))
	assert.Empty(t, extractSourceOffice(""))
	assert.Empty(t, extractSourceOffice("(toolongcode)"))
}
