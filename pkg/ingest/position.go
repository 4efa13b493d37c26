package ingest

import (
	"sort"
	"strconv"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// Position is a parsed vinyl/Discogs side-plus-index track label, e.g.
// "B9" parses to Side 'B', Index 9.
type Position struct {
	Side  byte
	Index int
}

// ParsePosition parses a Discogs position string of the form
// "<side-letter><index>" (e.g. "A1", "B9"). The side letter must be a
// single uppercase A-Z; the index is a positive decimal integer.
func ParsePosition(s string) (Position, error) {
	if len(s) < 2 {
		return Position{}, musicerr.NewLayoutError("invalid discogs position: " + s)
	}
	side := s[0]
	if side < 'A' || side > 'Z' {
		return Position{}, musicerr.NewLayoutError("invalid discogs position side: " + s)
	}
	index, err := strconv.Atoi(s[1:])
	if err != nil || index <= 0 {
		return Position{}, musicerr.NewLayoutError("invalid discogs position index: " + s)
	}
	return Position{Side: side, Index: index}, nil
}

// PositionedTrack pairs a track identifier with its parsed vinyl position.
type PositionedTrack struct {
	TrackID         string
	DiscogsPosition string
	parsed          Position
}

// AssignTrackNumbers orders tracks by side then index (vinyl order: all of
// side A before side B, each side ascending by index) and assigns dense,
// gap-free 1-based track_number values, independent of the position
// notation itself. Exercised by scenario (d): A1..A7, B1..B9 over 16
// tracks assigns track_number 1..16, with "B1" landing on 8.
func AssignTrackNumbers(tracks []PositionedTrack) ([]int, error) {
	parsed := make([]PositionedTrack, len(tracks))
	for i, t := range tracks {
		pos, err := ParsePosition(t.DiscogsPosition)
		if err != nil {
			return nil, err
		}
		t.parsed = pos
		parsed[i] = t
	}

	order := make([]int, len(parsed))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := parsed[order[a]].parsed, parsed[order[b]].parsed
		if pa.Side != pb.Side {
			return pa.Side < pb.Side
		}
		return pa.Index < pb.Index
	})

	trackNumbers := make([]int, len(parsed))
	for rank, originalIdx := range order {
		trackNumbers[originalIdx] = rank + 1
	}
	return trackNumbers, nil
}
