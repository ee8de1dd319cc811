package collector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

// sourceOfficeRe matches a 3-5 letter NWS office code in parentheses at the
// end of a comment, e.g. "Quarter hail reported. (FWD)" -> "FWD".
var sourceOfficeRe = regexp.MustCompile(`\(([A-Z]{3,5})\)\s*$`)

// GroundReportClient collects local storm reports: point observations of
// hail, wind, and tornadoes submitted by spotters and stations. The feed
// keeps the NWS CSV conventions: HHMM times, hail sizes occasionally in
// hundredths of inches, "UNK" for unmeasured magnitudes, and office codes
// in parentheses at the end of comments.
type GroundReportClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGroundReportClient creates the ground report collector.
func NewGroundReportClient(baseURL string, timeout time.Duration, logger *slog.Logger) *GroundReportClient {
	return &GroundReportClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *GroundReportClient) Source() domain.Source { return domain.SourceGroundReport }

// FetchEvents queries the report endpoint for the window and normalizes
// each record. Records that cannot be placed in time or space are skipped
// with a warning rather than failing the fetch.
func (c *GroundReportClient) FetchEvents(ctx context.Context, bbox domain.BoundingBox, window domain.TimeWindow) ([]domain.WeatherEvent, error) {
	params := url.Values{
		"bbox":  {fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat)},
		"start": {window.Start.UTC().Format("2006-01-02")},
		"end":   {window.End.UTC().Format("2006-01-02")},
	}

	var resp reportResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/reports?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("ground report feed: %w", err)
	}

	events := make([]domain.WeatherEvent, 0, len(resp.Reports))
	for _, rec := range resp.Reports {
		event, ok := c.normalize(rec, window)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *GroundReportClient) normalize(rec reportRecord, window domain.TimeWindow) (domain.WeatherEvent, bool) {
	day, err := time.Parse("2006-01-02", rec.Date)
	if err != nil {
		c.logger.Warn("report with unparseable date skipped", "date", rec.Date)
		return domain.WeatherEvent{}, false
	}
	occurred := parseHHMM(day, rec.Time)
	if !window.Contains(occurred) {
		return domain.WeatherEvent{}, false
	}

	lat := parseFloatOrZero(rec.Lat)
	lon := parseFloatOrZero(rec.Lon)
	if lat == 0 && lon == 0 {
		c.logger.Warn("report without coordinates skipped", "location", rec.Location)
		return domain.WeatherEvent{}, false
	}

	eventType, magnitude := reportMagnitude(rec)
	if eventType == "" {
		return domain.WeatherEvent{}, false
	}

	meta := map[string]string{}
	if rec.Comments != "" {
		meta["comments"] = rec.Comments
	}
	if office := extractSourceOffice(rec.Comments); office != "" {
		meta["source_office"] = office
	}
	if rec.Location != "" {
		meta["location"] = rec.Location
	}

	id := reportID(rec.Type, rec.Date, rec.Time, lat, lon)
	return domain.WeatherEvent{
		ID:           id,
		Source:       domain.SourceGroundReport,
		EventType:    eventType,
		OccurredAt:   occurred,
		Magnitude:    magnitude,
		Geometry:     domain.PointGeometry(lat, lon),
		SourceRef:    id,
		QualityScore: 1.0, // direct observations carry no upstream confidence signal
		Metadata:     meta,
	}, true
}

// reportMagnitude selects the magnitude column for the record's type and
// corrects known encoding issues. Some hail reports encode diameter in
// hundredths of inches (e.g. 175 = 1.75in); values >= 10 are assumed to use
// that encoding because the largest hail ever recorded in the US was about
// 8 inches. "UNK" and empty values yield a nil magnitude.
func reportMagnitude(rec reportRecord) (string, *float64) {
	var eventType, raw string
	switch rec.Type {
	case "hail":
		eventType, raw = domain.EventHailReport, rec.Size
	case "wind":
		eventType, raw = domain.EventWindReport, rec.Speed
	case "tornado":
		eventType, raw = domain.EventTornadoReport, rec.FScale
	default:
		return "", nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "UNK") {
		return eventType, nil
	}
	raw = strings.TrimPrefix(raw, "EF")
	raw = strings.TrimPrefix(raw, "F")

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return eventType, nil
	}
	if eventType == domain.EventHailReport && v >= 10 {
		v /= 100.0
	}
	return eventType, &v
}

// parseHHMM combines a base date with an HHMM time string (e.g. "1510" →
// 15:10 UTC). Three-digit values are zero-padded. Unparseable times fall
// back to the base date.
func parseHHMM(baseDate time.Time, hhmm string) time.Time {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) < 3 {
		return baseDate
	}
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return baseDate
	}

	return time.Date(
		baseDate.Year(), baseDate.Month(), baseDate.Day(),
		hour, mins, 0, 0, time.UTC,
	)
}

func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// extractSourceOffice pulls the NWS Weather Forecast Office code from the
// end of a comment string, e.g. "Large hail reported. (OUN)" -> "OUN".
func extractSourceOffice(comments string) string {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return ""
	}
	matches := sourceOfficeRe.FindStringSubmatch(comments)
	if len(matches) == 2 {
		return matches[1]
	}
	return ""
}

// reportID produces a deterministic ID from the record's key fields, so a
// re-fetch of the same window yields stable event identities for caching
// and citation.
func reportID(reportType, date, timeStr string, lat, lon float64) string {
	input := fmt.Sprintf("%s|%s|%s|%.4f|%.4f", reportType, date, timeStr, lat, lon)
	hash := sha256.Sum256([]byte(input))
	return "lsr-" + hex.EncodeToString(hash[:8])
}

// Ground report feed response types.

type reportResponse struct {
	Reports []reportRecord `json:"reports"`
}

type reportRecord struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HHMM, 24-hour UTC
	Type     string `json:"type"` // "hail", "wind", or "tornado"
	Size     string `json:"size"`
	Speed    string `json:"speed"`
	FScale   string `json:"f_scale"`
	Lat      string `json:"lat"`
	Lon      string `json:"lon"`
	Location string `json:"location"`
	Comments string `json:"comments"`
}
