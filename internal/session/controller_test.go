package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/lechess/lechess-record/internal/boardimg"
	"github.com/lechess/lechess-record/internal/msgcat"
	"github.com/lechess/lechess-record/internal/pgnindex"
)

type stubRenderer struct{}

func (stubRenderer) RenderPNG(context.Context, *nchess.Board, boardimg.RenderOptions) ([]byte, error) {
	return []byte("png"), nil
}

type scriptReader struct {
	lines []string
	pos   int
}

func (r *scriptReader) ReadLine(context.Context) (string, error) {
	if r.pos >= len(r.lines) {
		return "", io.EOF
	}
	line := r.lines[r.pos]
	r.pos++
	return line, nil
}

type fakeRecorder struct {
	outcomes []Outcome
	tasks    []string
	onRecord func()
}

func (r *fakeRecorder) Record(_ context.Context, task string, _ time.Duration) (Outcome, error) {
	r.tasks = append(r.tasks, task)
	if r.onRecord != nil {
		r.onRecord()
	}
	if len(r.outcomes) == 0 {
		return OutcomeCommitted, nil
	}
	out := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	return out, nil
}

type fakeStore struct {
	commits   int
	discards  int
	commitErr error
}

func (s *fakeStore) CommitEpisode(context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	return nil
}

func (s *fakeStore) DiscardEpisode(context.Context) error {
	s.discards++
	return nil
}

type fakeObserver struct{ calls int }

func (o *fakeObserver) Observe(context.Context) error {
	o.calls++
	return nil
}

type fakeAnnouncer struct{ lines []string }

func (a *fakeAnnouncer) Say(_ context.Context, text string) error {
	a.lines = append(a.lines, text)
	return nil
}

type fakeJournal struct{ recs []EpisodeRecord }

func (j *fakeJournal) SaveEpisode(_ context.Context, rec EpisodeRecord) error {
	j.recs = append(j.recs, rec)
	return nil
}

type fakeProgress struct {
	moveIdxs []int
	episodes []int
}

func (p *fakeProgress) SaveProgress(_ context.Context, moveIdx, episodes int) error {
	p.moveIdxs = append(p.moveIdxs, moveIdx)
	p.episodes = append(p.episodes, episodes)
	return nil
}

// sixPlyPGN yields six indexed moves with no color filter.
const sixPlyPGN = "1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 *"

func testIndexer(t *testing.T, pgn string, filter pgnindex.ColorFilter) *pgnindex.Indexer {
	t.Helper()
	idx, err := pgnindex.New(strings.NewReader(pgn), filter, stubRenderer{})
	if err != nil {
		t.Fatalf("pgnindex.New: %v", err)
	}
	return idx
}

func testMessages(t *testing.T) *msgcat.Catalog {
	t.Helper()
	m, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	return m
}

type harness struct {
	controller *Controller
	recorder   *fakeRecorder
	store      *fakeStore
	observer   *fakeObserver
	announcer  *fakeAnnouncer
	journal    *fakeJournal
	progress   *fakeProgress
	signals    *Signals
	out        *bytes.Buffer
}

func newHarness(t *testing.T, idx *pgnindex.Indexer, commands []string, mutate func(*Params)) *harness {
	t.Helper()
	h := &harness{
		recorder:  &fakeRecorder{},
		store:     &fakeStore{},
		observer:  &fakeObserver{},
		announcer: &fakeAnnouncer{},
		journal:   &fakeJournal{},
		progress:  &fakeProgress{},
		signals:   NewSignals(),
		out:       &bytes.Buffer{},
	}
	p := Params{
		Index:           idx,
		Recorder:        h.recorder,
		Store:           h.store,
		Observer:        h.observer,
		Announce:        h.announcer,
		Input:           &scriptReader{lines: commands},
		Journal:         h.journal,
		Progress:        h.progress,
		Messages:        testMessages(t),
		Signals:         h.signals,
		Out:             h.out,
		RepoID:          "test/repo",
		EpisodeTime:     time.Second,
		CheckpointPause: time.Millisecond,
	}
	if mutate != nil {
		mutate(&p)
	}
	c, err := NewController(p)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.controller = c
	return h
}

func TestEmptyFilteredSequence(t *testing.T) {
	idx := testIndexer(t, "1. e4 *", pgnindex.FilterBlack)
	h := newHarness(t, idx, nil, nil)
	if _, err := h.controller.Run(context.Background()); !errors.Is(err, pgnindex.ErrNoMoves) {
		t.Fatalf("expected ErrNoMoves, got %v", err)
	}
	if h.observer.calls != 0 || h.store.commits != 0 {
		t.Fatalf("empty sequence must not touch collaborators")
	}
}

func TestQuitPerformsNoRecording(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"q"}, nil)
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RecordedEpisodes != 0 || h.store.commits != 0 {
		t.Fatalf("quit must not record: %+v commits=%d", sum, h.store.commits)
	}
}

func TestNavigationClamping(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	// previous at 0 clamps; then walk to the end and clamp at the last index
	h := newHarness(t, idx, []string{"b", "w", "w", "w", "w", "w", "w", "q"}, nil)
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.LastIndex != idx.Len()-1 {
		t.Fatalf("expected to stop at last index %d, got %d", idx.Len()-1, sum.LastIndex)
	}
	out := h.out.String()
	if !strings.Contains(out, "Already at the first move.") {
		t.Fatalf("missing first-move clamp notice in output:\n%s", out)
	}
	if !strings.Contains(out, "Already at the last move.") {
		t.Fatalf("missing last-move clamp notice in output:\n%s", out)
	}
	if h.store.commits != 0 {
		t.Fatalf("navigation must not record, commits=%d", h.store.commits)
	}
}

func TestCommitAdvances(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g", "q"}, nil)
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RecordedEpisodes != 1 {
		t.Fatalf("expected 1 episode, got %d", sum.RecordedEpisodes)
	}
	if h.store.commits != 1 || h.store.discards != 0 {
		t.Fatalf("commits=%d discards=%d", h.store.commits, h.store.discards)
	}
	if sum.LastIndex != 1 {
		t.Fatalf("expected advance to index 1, got %d", sum.LastIndex)
	}
	if len(h.journal.recs) != 1 || h.journal.recs[0].MoveIndex != 0 {
		t.Fatalf("journal recs = %+v", h.journal.recs)
	}
	if h.journal.recs[0].Task != h.recorder.tasks[0] {
		t.Fatalf("journal task %q != recorded task %q", h.journal.recs[0].Task, h.recorder.tasks[0])
	}
	if len(h.progress.moveIdxs) == 0 || h.progress.moveIdxs[len(h.progress.moveIdxs)-1] != 1 {
		t.Fatalf("progress saves = %v", h.progress.moveIdxs)
	}
}

func TestRerecordDiscardsWithoutAdvancing(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g", "g", "q"}, func(p *Params) {
		p.Recorder = &fakeRecorder{outcomes: []Outcome{OutcomeRerecord, OutcomeCommitted}}
	})
	rec := h.controller.p.Recorder.(*fakeRecorder)
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.store.discards != 1 || h.store.commits != 1 {
		t.Fatalf("discards=%d commits=%d", h.store.discards, h.store.commits)
	}
	if sum.RecordedEpisodes != 1 {
		t.Fatalf("expected 1 committed episode, got %d", sum.RecordedEpisodes)
	}
	if len(rec.tasks) != 2 || rec.tasks[0] != rec.tasks[1] {
		t.Fatalf("re-record must stay on the same move: %v", rec.tasks)
	}
}

func TestRerecordSignalFromPendant(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g", "q"}, nil)
	// pendant raises re-record while the episode is being captured
	first := true
	h.recorder.onRecord = func() {
		if first {
			first = false
			h.signals.RaiseRerecord()
		}
	}
	if _, err := h.controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.store.discards != 1 || h.store.commits != 0 {
		t.Fatalf("discards=%d commits=%d", h.store.discards, h.store.commits)
	}
	if h.signals.ConsumeRerecord() {
		t.Fatalf("re-record flag must be cleared after consumption")
	}
}

func TestStopOutcomeDiscardsAndEnds(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g"}, func(p *Params) {
		p.Recorder = &fakeRecorder{outcomes: []Outcome{OutcomeStop}}
	})
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RecordedEpisodes != 0 || h.store.commits != 0 || h.store.discards != 1 {
		t.Fatalf("stop must discard without committing: %+v commits=%d discards=%d",
			sum, h.store.commits, h.store.discards)
	}
}

func TestStopSignalCheckedAtLoopTop(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	reader := &scriptReader{}
	h := newHarness(t, idx, nil, func(p *Params) { p.Input = reader })
	h.signals.RaiseStop()
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RecordedEpisodes != 0 || reader.pos != 0 {
		t.Fatalf("stop before loop must not prompt: %+v reads=%d", sum, reader.pos)
	}
}

func TestCheckpointAfterFiveCommits(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g", "g", "g", "g", "g", "q"}, nil)
	sum, err := h.controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RecordedEpisodes != 5 {
		t.Fatalf("expected 5 episodes, got %d", sum.RecordedEpisodes)
	}
	// one observation before the first move plus exactly one checkpoint
	if h.observer.calls != 2 {
		t.Fatalf("observer calls = %d, want 2", h.observer.calls)
	}
	checkpoints := 0
	for _, line := range h.announcer.lines {
		if strings.Contains(line, "lighting") {
			checkpoints++
		}
	}
	if checkpoints != 1 {
		t.Fatalf("checkpoint announcements = %d, want 1", checkpoints)
	}
}

func TestCommitFailureIsFatal(t *testing.T) {
	idx := testIndexer(t, sixPlyPGN, pgnindex.FilterNone)
	h := newHarness(t, idx, []string{"g"}, func(p *Params) {
		p.Store = &fakeStore{commitErr: errors.New("disk full")}
	})
	if _, err := h.controller.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected commit failure to propagate, got %v", err)
	}
}

func TestTaskLabelFormat(t *testing.T) {
	got := TaskLabel("fen-text", "Nf3")
	if got != "FEN: fen-text $$ MOVE: Nf3" {
		t.Fatalf("TaskLabel = %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"g": CmdRecord, " G ": CmdRecord,
		"w": CmdNext, "b": CmdPrev, "Q": CmdQuit,
		"x": CmdUnknown, "": CmdUnknown, "gg": CmdUnknown,
	}
	for in, want := range cases {
		if got := ParseCommand(in); got != want {
			t.Fatalf("ParseCommand(%q) = %v, want %v", in, got, want)
		}
	}
}
