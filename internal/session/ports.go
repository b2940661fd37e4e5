package session

import (
	"context"
	"time"
)

// Outcome reports how a bounded recording call terminated.
type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeRerecord
	OutcomeStop
)

// Recorder drives one time-boxed teleoperation episode labeled with task.
// The call blocks for at most duration plus transport overhead.
type Recorder interface {
	Record(ctx context.Context, task string, duration time.Duration) (Outcome, error)
}

// EpisodeStore persists or drops the episode buffered by the last Record call.
// Exactly one of the two is called per recording outcome.
type EpisodeStore interface {
	CommitEpisode(ctx context.Context) error
	DiscardEpisode(ctx context.Context) error
}

// Display forwards position renders and notices to the visualization sink.
// The controller does not consume any return value beyond the error.
type Display interface {
	ShowImage(ctx context.Context, png []byte) error
	ShowText(ctx context.Context, text string) error
}

// ObservationChecker blocks while the operator re-verifies the physical
// setup, returning when the operator releases it or ctx is canceled.
type ObservationChecker interface {
	Observe(ctx context.Context) error
}

// Announcer speaks a short line to the operator.
type Announcer interface {
	Say(ctx context.Context, text string) error
}

// LineReader reads one operator input line per call.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// EpisodeRecord is the metadata journaled for one committed episode.
type EpisodeRecord struct {
	ID         string
	RepoID     string
	MoveIndex  int
	FEN        string
	SAN        string
	Task       string
	Duration   time.Duration
	RecordedAt time.Time
}

// Journal archives committed episode metadata.
type Journal interface {
	SaveEpisode(ctx context.Context, rec EpisodeRecord) error
}

// ProgressSink checkpoints the session position so an interrupted run can
// resume at the same move.
type ProgressSink interface {
	SaveProgress(ctx context.Context, moveIdx, episodes int) error
}
