package ingest

import (
	"math"
	"sync"
)

// EventKind identifies the variant of a ProgressEvent.
type EventKind int

const (
	EventStarted EventKind = iota
	EventProgress
	EventTrackComplete
	EventComplete
	EventFailed
)

// ProgressEvent is emitted on a release's progress channel as the pipeline
// runs. ID is a release id for release-level events and a track id for
// track-level events.
type ProgressEvent struct {
	Kind    EventKind
	ID      string
	Percent uint8
	Err     error
}

// ProgressTracker accumulates chunk completions and emits release- and
// track-level progress events. A chunk can belong to more than one track
// when small files share it; a track completes only once every chunk it
// touches has completed.
type ProgressTracker struct {
	releaseID        string
	totalChunks      int
	chunkToTrack     map[int][]string
	trackChunkCounts map[string]int
	events           chan<- ProgressEvent

	mu              sync.Mutex
	completedChunks map[int]bool
	completedTracks map[string]bool
}

// NewProgressTracker constructs a tracker for one release import. events
// may be nil, in which case progress is tracked but not published.
func NewProgressTracker(releaseID string, totalChunks int, chunkToTrack map[int][]string, trackChunkCounts map[string]int, events chan<- ProgressEvent) *ProgressTracker {
	return &ProgressTracker{
		releaseID:        releaseID,
		totalChunks:      totalChunks,
		chunkToTrack:     chunkToTrack,
		trackChunkCounts: trackChunkCounts,
		events:           events,
		completedChunks:  make(map[int]bool),
		completedTracks:  make(map[string]bool),
	}
}

// OnChunkComplete marks chunkIndex complete, emits release- and
// track-level Progress events, and emits TrackComplete for any track that
// has just finished. It returns the ids of tracks newly completed by this
// call, for the caller to persist.
func (t *ProgressTracker) OnChunkComplete(chunkIndex int) []string {
	t.mu.Lock()

	t.completedChunks[chunkIndex] = true

	newlyCompleted := t.tracksNewlyComplete()
	for _, trackID := range newlyCompleted {
		t.completedTracks[trackID] = true
	}

	type trackProgress struct {
		trackID string
		percent uint8
	}
	var trackUpdates []trackProgress
	for trackID, total := range t.trackChunkCounts {
		if t.completedTracks[trackID] {
			continue
		}
		trackUpdates = append(trackUpdates, trackProgress{trackID, calculateProgress(t.completedForTrack(trackID), total)})
	}

	releasePercent := calculateProgress(len(t.completedChunks), t.totalChunks)

	t.mu.Unlock()

	t.emit(ProgressEvent{Kind: EventProgress, ID: t.releaseID, Percent: releasePercent})

	for _, u := range trackUpdates {
		t.emit(ProgressEvent{Kind: EventProgress, ID: u.trackID, Percent: u.percent})
	}
	for _, trackID := range newlyCompleted {
		t.emit(ProgressEvent{Kind: EventTrackComplete, ID: trackID})
	}

	return newlyCompleted
}

// Started emits the release-level Started event.
func (t *ProgressTracker) Started() { t.emit(ProgressEvent{Kind: EventStarted, ID: t.releaseID}) }

// Complete emits the release-level Complete event.
func (t *ProgressTracker) Complete() { t.emit(ProgressEvent{Kind: EventComplete, ID: t.releaseID}) }

// Failed emits the release-level Failed event with the causing error.
func (t *ProgressTracker) Failed(err error) {
	t.emit(ProgressEvent{Kind: EventFailed, ID: t.releaseID, Err: err})
}

func (t *ProgressTracker) emit(e ProgressEvent) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- e:
	default:
	}
}

// tracksNewlyComplete must be called with t.mu held.
func (t *ProgressTracker) tracksNewlyComplete() []string {
	var newly []string
	for trackID, total := range t.trackChunkCounts {
		if t.completedTracks[trackID] {
			continue
		}
		if t.completedForTrack(trackID) == total {
			newly = append(newly, trackID)
		}
	}
	return newly
}

// completedForTrack must be called with t.mu held.
func (t *ProgressTracker) completedForTrack(trackID string) int {
	count := 0
	for chunkIndex, trackIDs := range t.chunkToTrack {
		if !t.completedChunks[chunkIndex] {
			continue
		}
		for _, id := range trackIDs {
			if id == trackID {
				count++
				break
			}
		}
	}
	return count
}

// calculateProgress reports min(100, round(100 * completed / total));
// a zero-total release reports 100 immediately.
func calculateProgress(completed, total int) uint8 {
	if total == 0 {
		return 100
	}
	percent := math.Round(float64(completed) / float64(total) * 100.0)
	if percent > 100 {
		percent = 100
	}
	return uint8(percent)
}
