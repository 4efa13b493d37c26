// Package ingest implements folder discovery, position parsing, and the
// produce→encrypt→upload→persist streaming pipeline that turns a release's
// files into stored, encrypted chunks.
package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxRecursionDepth = 10

var (
	audioExtensions    = map[string]bool{"flac": true, "mp3": true, "wav": true, "m4a": true, "aac": true, "ogg": true}
	imageExtensions    = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true, "bmp": true}
	documentExtensions = map[string]bool{"cue": true, "log": true, "txt": true, "nfo": true, "m3u": true, "m3u8": true}
	noiseFilenames     = map[string]bool{".DS_Store": true, "Thumbs.db": true, "desktop.ini": true}
)

// ScannedFile is one file discovered while walking a release's folder.
type ScannedFile struct {
	Path         string // full filesystem path
	RelativePath string // path relative to the release root, display order
	Size         int64
}

// CategorizedFiles splits a release's files by role.
type CategorizedFiles struct {
	Tracks    []ScannedFile
	Artwork   []ScannedFile
	Documents []ScannedFile
	Other     []ScannedFile
}

// DetectedRelease is one leaf directory in a scanned folder tree.
type DetectedRelease struct {
	Path  string
	Name  string
	Files CategorizedFiles
}

func isAudioFile(path string) bool    { return extIn(path, audioExtensions) }
func isImageFile(path string) bool    { return extIn(path, imageExtensions) }
func isDocumentFile(path string) bool { return extIn(path, documentExtensions) }

func extIn(path string, set map[string]bool) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return set[ext]
}

func isNoiseFile(path string) bool {
	return noiseFilenames[filepath.Base(path)]
}

func hasAudioFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && isAudioFile(e.Name()) {
			return true, nil
		}
	}
	return false, nil
}

func hasCueFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && extIn(e.Name(), map[string]bool{"cue": true}) {
			return true, nil
		}
	}
	return false, nil
}

func hasSubdirsWithAudio(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			ok, err := hasAudioFiles(filepath.Join(dir, e.Name()))
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func hasNestedAudioDirs(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			ok, err := hasSubdirsWithAudio(filepath.Join(dir, e.Name()))
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// isLeafDirectory reports whether dir is a release boundary: it has audio
// files or CUE files directly, or it has subdirectories with audio but
// those subdirectories have no audio subdirectories of their own (the
// multi-disc case).
func isLeafDirectory(dir string) (bool, error) {
	if ok, err := hasAudioFiles(dir); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if ok, err := hasCueFiles(dir); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	hasSubAudio, err := hasSubdirsWithAudio(dir)
	if err != nil {
		return false, err
	}
	if !hasSubAudio {
		return false, nil
	}
	hasNested, err := hasNestedAudioDirs(dir)
	if err != nil {
		return false, err
	}
	return !hasNested, nil
}

// ScanForReleases walks root looking for release leaf directories,
// supporting flat single releases, multi-disc releases, and collections
// of many releases.
func ScanForReleases(root string) ([]DetectedRelease, error) {
	var releases []DetectedRelease
	if err := scanRecursive(root, 0, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func scanRecursive(dir string, depth int, releases *[]DetectedRelease) error {
	if depth > maxRecursionDepth {
		return nil
	}

	leaf, err := isLeafDirectory(dir)
	if err != nil {
		return err
	}
	if leaf {
		files, err := CollectReleaseFiles(dir)
		if err != nil {
			return err
		}
		*releases = append(*releases, DetectedRelease{
			Path:  dir,
			Name:  filepath.Base(dir),
			Files: files,
		})
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := scanRecursive(filepath.Join(dir, e.Name()), depth+1, releases); err != nil {
				return err
			}
		}
	}
	return nil
}

// CollectReleaseFiles walks a single release directory recursively,
// categorizing every file and sorting each category by relative path for
// deterministic layout ordering (the planner's file ordering rule).
func CollectReleaseFiles(releaseRoot string) (CategorizedFiles, error) {
	var categorized CategorizedFiles
	if err := collectFilesRecursive(releaseRoot, releaseRoot, &categorized); err != nil {
		return CategorizedFiles{}, err
	}

	sort.Slice(categorized.Tracks, func(i, j int) bool { return categorized.Tracks[i].RelativePath < categorized.Tracks[j].RelativePath })
	sort.Slice(categorized.Artwork, func(i, j int) bool { return categorized.Artwork[i].RelativePath < categorized.Artwork[j].RelativePath })
	sort.Slice(categorized.Documents, func(i, j int) bool {
		return categorized.Documents[i].RelativePath < categorized.Documents[j].RelativePath
	})
	sort.Slice(categorized.Other, func(i, j int) bool { return categorized.Other[i].RelativePath < categorized.Other[j].RelativePath })

	return categorized, nil
}

func collectFilesRecursive(currentDir, releaseRoot string, categorized *CategorizedFiles) error {
	entries, err := os.ReadDir(currentDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		path := filepath.Join(currentDir, e.Name())
		if e.IsDir() {
			if err := collectFilesRecursive(path, releaseRoot, categorized); err != nil {
				return err
			}
			continue
		}

		if isNoiseFile(path) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(releaseRoot, path)
		if err != nil {
			return err
		}

		file := ScannedFile{Path: path, RelativePath: relPath, Size: info.Size()}
		switch {
		case isAudioFile(path):
			categorized.Tracks = append(categorized.Tracks, file)
		case isImageFile(path):
			categorized.Artwork = append(categorized.Artwork, file)
		case isDocumentFile(path):
			categorized.Documents = append(categorized.Documents, file)
		default:
			categorized.Other = append(categorized.Other, file)
		}
	}
	return nil
}
