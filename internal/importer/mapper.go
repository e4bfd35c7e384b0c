// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

package importer

import (
	"crypto/sha1" //nolint:gosec // stable row fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/prwdo/jellytrack/internal/models"
)

const (
	idPrefix     = "imported_"
	unknownValue = "Unknown"
)

// Columns the mapper reads. Anything else in the reply is ignored.
const (
	colRowID        = "rowid"
	colDateCreated  = "DateCreated"
	colUserID       = "UserId"
	colItemID       = "ItemId"
	colItemType     = "ItemType"
	colItemName     = "ItemName"
	colClientName   = "ClientName"
	colDeviceName   = "DeviceName"
	colPlayDuration = "PlayDuration"
)

// episodePattern matches "Series - s01e02 - Episode Title"; the title part
// is optional.
var episodePattern = regexp.MustCompile(`^(.+?) - [sS](\d+)[eE](\d+)(?: - (.+))?$`)

// dateLayouts are tried in order on DateCreated.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Title is the parsed form of an ItemName.
type Title struct {
	Title         string
	SeriesName    *string
	SeasonNumber  *int
	EpisodeNumber *int
}

// ParseTitle splits an episode-style name. Names that do not match are
// returned unchanged with no series metadata.
func ParseTitle(name string) Title {
	m := episodePattern.FindStringSubmatch(name)
	if m == nil {
		return Title{Title: name}
	}
	season, errS := strconv.Atoi(m[2])
	episode, errE := strconv.Atoi(m[3])
	if errS != nil || errE != nil {
		return Title{Title: name}
	}
	series := m[1]
	t := Title{
		Title:         name,
		SeriesName:    &series,
		SeasonNumber:  &season,
		EpisodeNumber: &episode,
	}
	if m[4] != "" {
		t.Title = m[4]
	}
	return t
}

// ParseDate parses a DateCreated value. Values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// Some plugin versions append a zone name or garbage after the seconds.
	if len(s) >= 19 {
		if t, err := time.Parse("2006-01-02 15:04:05", s[:19]); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// row is one result row keyed by column name.
type row struct {
	columns []string
	values  map[string]any
}

func newRow(columns []string, values []any) row {
	r := row{columns: columns, values: make(map[string]any, len(columns))}
	for i, c := range columns {
		if i < len(values) {
			r.values[c] = values[i]
		}
	}
	return r
}

func (r row) str(col string) string {
	return valueString(r.values[col])
}

func (r row) strOr(col, fallback string) string {
	if s := r.str(col); s != "" {
		return s
	}
	return fallback
}

// sessionID derives the stable synthetic id of the row.
func (r row) sessionID() string {
	if id := r.str(colRowID); id != "" && id != "0" {
		return idPrefix + id
	}
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = r.str(c)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|"))) //nolint:gosec // fingerprint only
	return idPrefix + hex.EncodeToString(sum[:])
}

// valueString renders a decoded JSON scalar the way it appeared on the wire.
func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// parseSeconds accepts a JSON number or a numeric string. Fractions are
// truncated and negatives clamp to 0.
func parseSeconds(v any) (int64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return max(n, 0), nil
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", x.String())
		}
		f = parsed
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid duration %v", f)
	}
	if f < 0 {
		return 0, nil
	}
	return int64(f), nil
}

// toSession maps one row. userNames resolves UserId to a display name.
func (r row) toSession(userNames map[string]string) (*models.Session, error) {
	started, err := ParseDate(r.str(colDateCreated))
	if err != nil {
		return nil, err
	}
	play, err := parseSeconds(r.values[colPlayDuration])
	if err != nil {
		return nil, err
	}

	userID := r.str(colUserID)
	userName, ok := userNames[userID]
	if !ok || userName == "" {
		userName = unknownValue
	}
	deviceName := r.strOr(colDeviceName, unknownValue)
	title := ParseTitle(r.strOr(colItemName, unknownValue))
	ended := started

	return &models.Session{
		SessionID:           r.sessionID(),
		UserID:              userID,
		UserName:            userName,
		DeviceID:            idPrefix + deviceName,
		DeviceName:          deviceName,
		ClientName:          r.strOr(colClientName, unknownValue),
		MediaID:             r.str(colItemID),
		MediaTitle:          title.Title,
		MediaType:           r.strOr(colItemType, unknownValue),
		SeriesName:          title.SeriesName,
		SeasonNumber:        title.SeasonNumber,
		EpisodeNumber:       title.EpisodeNumber,
		StartedAt:           started,
		EndedAt:             &ended,
		LastProgressUpdate:  started,
		PlayDurationSeconds: play,
		IsActive:            false,
	}, nil
}
