package cuesheet

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseTimeConvertsFramesToMilliseconds(t *testing.T) {
	// 3 minutes + 45 seconds + 12 frames = 180000 + 45000 + 160 = 225160ms.
	got, err := parseTime("03:45:12")
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if got != 225160 {
		t.Fatalf("parseTime = %d, want 225160", got)
	}
}

func TestParseQuotedString(t *testing.T) {
	got, err := parseQuoted(`"Test Album"`)
	if err != nil {
		t.Fatalf("parseQuoted failed: %v", err)
	}
	if got != "Test Album" {
		t.Fatalf("parseQuoted = %q, want %q", got, "Test Album")
	}
}

const sampleCue = `TITLE "Test Album"
PERFORMER "Test Artist"
TRACK 01 AUDIO
  TITLE "First Song"
  PERFORMER "Test Artist"
  INDEX 01 00:00:00
TRACK 02 AUDIO
  TITLE "Second Song"
  INDEX 01 03:45:12
TRACK 03 AUDIO
  TITLE "Third Song"
  INDEX 01 07:30:00
`

// Scenario (e): CUE sheet indexing three tracks into one FLAC file.
func TestParseCueSheetThreeTracks(t *testing.T) {
	sheet, err := Parse(sampleCue)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sheet.Title != "Test Album" || sheet.Performer != "Test Artist" {
		t.Fatalf("sheet header = %+v", sheet)
	}
	if len(sheet.Tracks) != 3 {
		t.Fatalf("len(Tracks) = %d, want 3", len(sheet.Tracks))
	}

	if sheet.Tracks[0].StartTimeMS != 0 {
		t.Fatalf("track 1 start = %d, want 0", sheet.Tracks[0].StartTimeMS)
	}
	if sheet.Tracks[0].EndTimeMS == nil || *sheet.Tracks[0].EndTimeMS != 225160 {
		t.Fatalf("track 1 end = %v, want 225160", sheet.Tracks[0].EndTimeMS)
	}
	if sheet.Tracks[1].Performer != "" {
		t.Fatalf("track 2 performer should default empty, got %q", sheet.Tracks[1].Performer)
	}
	if sheet.Tracks[2].EndTimeMS != nil {
		t.Fatal("last track must have no end time")
	}
}

func TestParseRejectsMissingTitle(t *testing.T) {
	if _, err := Parse("PERFORMER \"x\"\n"); err == nil {
		t.Fatal("expected error for missing TITLE")
	}
}

func TestParseRejectsMalformedIndex(t *testing.T) {
	bad := `TITLE "A"
PERFORMER "B"
TRACK 01 AUDIO
  TITLE "T"
  INDEX 01 not-a-time
`
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for malformed INDEX time")
	}
}

func TestDetectPairsMatchesByStem(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"album.flac", "album.cue", "bonus.flac", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	pairs, err := DetectPairs(dir)
	if err != nil {
		t.Fatalf("DetectPairs failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if filepath.Base(pairs[0].FlacPath) != "album.flac" || filepath.Base(pairs[0].CuePath) != "album.cue" {
		t.Fatalf("pair = %+v", pairs[0])
	}
}

func TestFindAudioStartSkipsMetadataBlocks(t *testing.T) {
	data := buildMinimalFlac(44100, 2, 16, 1000, 64)
	got, err := findAudioStart(data)
	if err != nil {
		t.Fatalf("findAudioStart failed: %v", err)
	}
	// "fLaC" (4) + STREAMINFO header (4) + STREAMINFO body (34) = 42.
	if got != 42 {
		t.Fatalf("audio start = %d, want 42", got)
	}
}

func TestFindAudioStartRejectsBadSignature(t *testing.T) {
	if _, err := findAudioStart([]byte("nope")); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestParseFlacHeadersReadsStreamInfo(t *testing.T) {
	data := buildMinimalFlac(44100, 2, 16, 1000, 128)
	headers, err := parseFlacHeaders(data)
	if err != nil {
		t.Fatalf("parseFlacHeaders failed: %v", err)
	}
	if headers.SampleRate != 44100 {
		t.Fatalf("SampleRate = %d, want 44100", headers.SampleRate)
	}
	if headers.Channels != 2 {
		t.Fatalf("Channels = %d, want 2", headers.Channels)
	}
	if headers.BitsPerSample != 16 {
		t.Fatalf("BitsPerSample = %d, want 16", headers.BitsPerSample)
	}
	if headers.TotalSamples != 1000 {
		t.Fatalf("TotalSamples = %d, want 1000", headers.TotalSamples)
	}
	if headers.AudioStartByte != 42 {
		t.Fatalf("AudioStartByte = %d, want 42", headers.AudioStartByte)
	}
}

func TestEstimateBytePositionScalesLinearly(t *testing.T) {
	headers := &FlacHeaders{
		AudioStartByte: 100,
		SampleRate:     1000,
		TotalSamples:   10000, // 10 second file
	}
	// Halfway through a 10s file, audio region is 10000 bytes, so we
	// expect roughly the midpoint byte.
	got := EstimateBytePosition(5000, headers, 10100)
	if got < 100 || got > 10100 {
		t.Fatalf("estimated byte %d out of range", got)
	}
	want := uint64(100 + 5000*10000/10000)
	if got != want {
		t.Fatalf("estimated byte = %d, want %d", got, want)
	}
}

// buildMinimalFlac constructs a FLAC byte stream with a single STREAMINFO
// metadata block followed by audioBytes of arbitrary filler (mewkiz/flac's
// New only parses metadata, not frames, so the filler need not be valid).
func buildMinimalFlac(sampleRate uint32, channels, bitsPerSample uint8, totalSamples uint64, audioBytes int) []byte {
	buf := make([]byte, 0, 4+4+34+audioBytes)
	buf = append(buf, 'f', 'L', 'a', 'C')

	// STREAMINFO header: last-block flag set, type 0, length 34.
	buf = append(buf, 0x80, 0x00, 0x00, 0x22)

	body := make([]byte, 34)
	// min/max block size 4096 (mewkiz/flac rejects block sizes below 16);
	// min/max frame size left zero (unknown).
	body[0], body[2] = 0x10, 0x10
	packed := (uint64(sampleRate)&0xFFFFF)<<44 | (uint64(channels-1)&0x7)<<41 | (uint64(bitsPerSample-1)&0x1F)<<36 | (totalSamples & 0xFFFFFFFFF)
	body[10] = byte(packed >> 56)
	body[11] = byte(packed >> 48)
	body[12] = byte(packed >> 40)
	body[13] = byte(packed >> 32)
	body[14] = byte(packed >> 24)
	body[15] = byte(packed >> 16)
	body[16] = byte(packed >> 8)
	body[17] = byte(packed)
	buf = append(buf, body...)

	buf = append(buf, make([]byte, audioBytes)...)
	return buf
}
