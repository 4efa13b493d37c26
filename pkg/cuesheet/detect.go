package cuesheet

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pair is a FLAC file matched with the CUE sheet that indexes it.
type Pair struct {
	FlacPath string
	CuePath  string
}

// DetectPairs scans folderPath for .flac/.cue files sharing a stem.
// Pairs are returned in FLAC-filename order for deterministic import.
func DetectPairs(folderPath string) ([]Pair, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}

	var flacFiles, cueFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".flac":
			flacFiles = append(flacFiles, e.Name())
		case ".cue":
			cueFiles = append(cueFiles, e.Name())
		}
	}
	sort.Strings(flacFiles)
	sort.Strings(cueFiles)

	var pairs []Pair
	for _, flacName := range flacFiles {
		stem := stemOf(flacName)
		for _, cueName := range cueFiles {
			if stemOf(cueName) == stem {
				pairs = append(pairs, Pair{
					FlacPath: filepath.Join(folderPath, flacName),
					CuePath:  filepath.Join(folderPath, cueName),
				})
				break
			}
		}
	}
	return pairs, nil
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
