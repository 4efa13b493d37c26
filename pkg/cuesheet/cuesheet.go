// Package cuesheet parses CUE sheets and pairs them with the FLAC files
// they index. A CUE/FLAC pair lets one FLAC file hold several tracks,
// each addressed by a TITLE/PERFORMER/INDEX 01 entry rather than a
// separate file per track.
package cuesheet

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// Track is a single TRACK entry in a CUE sheet, with its start offset
// converted from MM:SS:FF to milliseconds. EndTimeMS is nil for the
// final track, whose end is the backing file's audio length.
type Track struct {
	Number      int
	Title       string
	Performer   string
	StartTimeMS uint64
	EndTimeMS   *uint64
}

// Sheet is a parsed CUE sheet.
type Sheet struct {
	Title     string
	Performer string
	Tracks    []Track
}

// framesPerSecond is the CD audio index resolution: 75 frames/sec.
const framesPerSecond = 75

// Parse parses CUE sheet text per the TITLE/PERFORMER/TRACK NN
// AUDIO/INDEX 01 MM:SS:FF grammar, walking the sheet a non-blank line
// at a time.
func Parse(content string) (*Sheet, error) {
	lines := splitNonBlankLines(content)
	pos := 0

	title, next, err := parseKeyedQuoted(lines, pos, "TITLE")
	if err != nil {
		return nil, err
	}
	pos = next

	performer, next, err := parseKeyedQuoted(lines, pos, "PERFORMER")
	if err != nil {
		return nil, err
	}
	pos = next

	var tracks []Track
	for pos < len(lines) {
		track, next, err := parseTrack(lines, pos)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
		pos = next
	}

	for i := range tracks {
		if i+1 < len(tracks) {
			end := tracks[i+1].StartTimeMS
			tracks[i].EndTimeMS = &end
		}
	}

	return &Sheet{Title: title, Performer: performer, Tracks: tracks}, nil
}

func splitNonBlankLines(content string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseKeyedQuoted(lines []string, pos int, key string) (string, int, error) {
	if pos >= len(lines) {
		return "", pos, musicerr.NewCueSheetError("expected "+key+" line, reached end of sheet", nil)
	}
	fields := strings.SplitN(lines[pos], " ", 2)
	if len(fields) != 2 || fields[0] != key {
		return "", pos, musicerr.NewCueSheetError("expected "+key+" line, got: "+lines[pos], nil)
	}
	value, err := parseQuoted(fields[1])
	if err != nil {
		return "", pos, err
	}
	return value, pos + 1, nil
}

func parseQuoted(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", musicerr.NewCueSheetError("expected quoted string, got: "+s, nil)
	}
	return s[1 : len(s)-1], nil
}

func parseTrack(lines []string, pos int) (Track, int, error) {
	if pos >= len(lines) {
		return Track{}, pos, musicerr.NewCueSheetError("expected TRACK line, reached end of sheet", nil)
	}
	fields := strings.Fields(lines[pos])
	if len(fields) != 3 || fields[0] != "TRACK" || fields[2] != "AUDIO" {
		return Track{}, pos, musicerr.NewCueSheetError("expected TRACK NN AUDIO, got: "+lines[pos], nil)
	}
	number, err := strconv.Atoi(fields[1])
	if err != nil {
		return Track{}, pos, musicerr.NewCueSheetError("invalid track number: "+fields[1], err)
	}
	pos++

	title, pos, err := parseKeyedQuoted(lines, pos, "TITLE")
	if err != nil {
		return Track{}, pos, err
	}

	var performer string
	if pos < len(lines) && strings.HasPrefix(lines[pos], "PERFORMER ") {
		performer, pos, err = parseKeyedQuoted(lines, pos, "PERFORMER")
		if err != nil {
			return Track{}, pos, err
		}
	}

	if pos >= len(lines) {
		return Track{}, pos, musicerr.NewCueSheetError("expected INDEX 01 line, reached end of sheet", nil)
	}
	fields = strings.Fields(lines[pos])
	if len(fields) != 3 || fields[0] != "INDEX" || fields[1] != "01" {
		return Track{}, pos, musicerr.NewCueSheetError("expected INDEX 01 MM:SS:FF, got: "+lines[pos], nil)
	}
	startMS, err := parseTime(fields[2])
	if err != nil {
		return Track{}, pos, err
	}
	pos++

	return Track{
		Number:      number,
		Title:       title,
		Performer:   performer,
		StartTimeMS: startMS,
	}, pos, nil
}

// parseTime converts MM:SS:FF (75 CD frames/sec) to milliseconds.
func parseTime(s string) (uint64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, musicerr.NewCueSheetError("invalid time format: "+s, nil)
	}
	minutes, err1 := strconv.ParseUint(parts[0], 10, 64)
	seconds, err2 := strconv.ParseUint(parts[1], 10, 64)
	frames, err3 := strconv.ParseUint(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, musicerr.NewCueSheetError("invalid time format: "+s, nil)
	}
	return minutes*60*1000 + seconds*1000 + frames*1000/framesPerSecond, nil
}
