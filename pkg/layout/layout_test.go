package layout

import "testing"

const mib = 1024 * 1024

// Scenario: three files, simple.
func TestAnalyzeThreeFilesSimple(t *testing.T) {
	files := []File{
		{Path: "01.flac", Size: 2 * mib},
		{Path: "02.flac", Size: 3 * mib},
		{Path: "03.flac", Size: 1*mib + mib/2},
	}
	tracks := []TrackFile{
		{TrackID: "t1", FilePath: "01.flac"},
		{TrackID: "t2", FilePath: "02.flac"},
		{TrackID: "t3", FilePath: "03.flac"},
	}

	got, err := Analyze(files, tracks, mib)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got.TotalChunks != 7 {
		t.Fatalf("TotalChunks = %d, want 7", got.TotalChunks)
	}
	wantRanges := [][2]int{{0, 1}, {2, 4}, {5, 6}}
	for i, want := range wantRanges {
		m := got.FileMappings[i]
		if m.StartChunkIndex != want[0] || m.EndChunkIndex != want[1] {
			t.Fatalf("file %d range = [%d,%d], want [%d,%d]", i, m.StartChunkIndex, m.EndChunkIndex, want[0], want[1])
		}
	}
}

// Scenario (b): shared chunk across files.
func TestAnalyzeSharedChunkAcrossFiles(t *testing.T) {
	files := []File{
		{Path: "a.flac", Size: 1500},
		{Path: "b.flac", Size: 1200},
		{Path: "c.flac", Size: 500},
	}
	tracks := []TrackFile{
		{TrackID: "a", FilePath: "a.flac"},
		{TrackID: "b", FilePath: "b.flac"},
		{TrackID: "c", FilePath: "c.flac"},
	}

	got, err := Analyze(files, tracks, 1000)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.TotalChunks != 4 {
		t.Fatalf("TotalChunks = %d, want 4", got.TotalChunks)
	}

	// chunk 1 should list both a and b; chunk 2 should list both b and c.
	chunk1 := got.ChunkToTrack[1]
	if !containsString(chunk1, "a") || !containsString(chunk1, "b") {
		t.Fatalf("chunk 1 tracks = %v, want a and b", chunk1)
	}
	chunk2 := got.ChunkToTrack[2]
	if !containsString(chunk2, "b") || !containsString(chunk2, "c") {
		t.Fatalf("chunk 2 tracks = %v, want b and c", chunk2)
	}
}

// Scenario (c): empty and unit files.
func TestAnalyzeEmptyAndUnitFiles(t *testing.T) {
	files := []File{
		{Path: "empty.flac", Size: 0},
		{Path: "f500.flac", Size: 500},
		{Path: "f1000.flac", Size: 1000},
		{Path: "f1500.flac", Size: 1500},
		{Path: "f3000.flac", Size: 3000},
	}

	got, err := Analyze(files, nil, 1000)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.TotalChunks != 6 {
		t.Fatalf("TotalChunks = %d, want 6", got.TotalChunks)
	}
	if len(got.FileMappings) != 4 {
		t.Fatalf("expected the empty file to produce no mapping, got %d mappings", len(got.FileMappings))
	}
	for _, m := range got.FileMappings {
		if m.FilePath == "empty.flac" {
			t.Fatal("empty file must not appear in file_mappings")
		}
	}
}

func TestAnalyzeEmptyRelease(t *testing.T) {
	got, err := Analyze(nil, nil, mib)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.TotalChunks != 0 {
		t.Fatalf("TotalChunks = %d, want 0", got.TotalChunks)
	}
	if len(got.FileMappings) != 0 {
		t.Fatalf("expected no mappings for an empty release")
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	files := []File{
		{Path: "01.flac", Size: 2 * mib},
		{Path: "02.flac", Size: 3 * mib},
	}
	tracks := []TrackFile{{TrackID: "t1", FilePath: "01.flac"}, {TrackID: "t2", FilePath: "02.flac"}}

	a, err := Analyze(files, tracks, mib)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	b, err := Analyze(files, tracks, mib)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if a.TotalChunks != b.TotalChunks || len(a.FileMappings) != len(b.FileMappings) {
		t.Fatal("Analyze is not deterministic across identical inputs")
	}
	for i := range a.FileMappings {
		if a.FileMappings[i] != b.FileMappings[i] {
			t.Fatalf("mapping %d differs between runs: %+v vs %+v", i, a.FileMappings[i], b.FileMappings[i])
		}
	}
}

func TestAnalyzeRejectsTrackWithoutBackingFile(t *testing.T) {
	files := []File{{Path: "01.flac", Size: 1000}}
	tracks := []TrackFile{
		{TrackID: "t1", FilePath: "01.flac"},
		{TrackID: "ghost", FilePath: "missing.flac"},
	}

	if _, err := Analyze(files, tracks, 1000); err == nil {
		t.Fatal("expected LayoutError for track with no backing file")
	}
}

func TestAnalyzeRejectsNonPositiveChunkSize(t *testing.T) {
	if _, err := Analyze([]File{{Path: "a", Size: 10}}, nil, 0); err == nil {
		t.Fatal("expected error for zero chunk size")
	}
}

func TestLastChunkPartialLength(t *testing.T) {
	// 2MB + 3MB + 1.5MB = 6.5MB over 1MB chunks -> last chunk holds 0.5MB.
	files := []File{
		{Path: "01.flac", Size: 2 * mib},
		{Path: "02.flac", Size: 3 * mib},
		{Path: "03.flac", Size: 1*mib + mib/2},
	}
	got, err := Analyze(files, nil, mib)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	last := got.FileMappings[len(got.FileMappings)-1]
	lastChunkBytes := last.EndByteOffset + 1
	if lastChunkBytes != mib/2 {
		t.Fatalf("last chunk length = %d, want %d", lastChunkBytes, mib/2)
	}
}
