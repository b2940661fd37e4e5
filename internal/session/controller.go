// Package session runs the move-synchronized recording loop: present a
// position, take one operator command, and record, navigate, or quit.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lechess/lechess-record/internal/msgcat"
	"github.com/lechess/lechess-record/internal/pgnindex"
)

// TaskLabel builds the dataset task description for one move.
func TaskLabel(fen, san string) string {
	return fmt.Sprintf("FEN: %s $$ MOVE: %s", fen, san)
}

// Params wires the controller's collaborators. Recorder, EpisodeStore,
// Input, Messages, and Signals are required; the rest may be nil.
type Params struct {
	Index    *pgnindex.Indexer
	Recorder Recorder
	Store    EpisodeStore
	Display  Display
	Observer ObservationChecker
	Announce Announcer
	Input    LineReader
	Journal  Journal
	Progress ProgressSink
	Messages *msgcat.Catalog
	Signals  *Signals
	Out      io.Writer
	Logger   *zap.Logger

	RepoID             string
	EpisodeTime        time.Duration
	CheckpointInterval int
	CheckpointPause    time.Duration
	StartIndex         int
}

// Controller owns the session state machine. State is mutated only inside
// Run and discarded when it returns.
type Controller struct {
	p   Params
	log *zap.Logger
}

// Summary reports what a finished session accomplished.
type Summary struct {
	RecordedEpisodes int
	LastIndex        int
}

func NewController(p Params) (*Controller, error) {
	if p.Index == nil {
		return nil, errors.New("session: indexer is required")
	}
	if p.Recorder == nil || p.Store == nil {
		return nil, errors.New("session: recorder and episode store are required")
	}
	if p.Input == nil {
		return nil, errors.New("session: input reader is required")
	}
	if p.Messages == nil {
		return nil, errors.New("session: message catalog is required")
	}
	if p.Signals == nil {
		p.Signals = NewSignals()
	}
	if p.Out == nil {
		p.Out = io.Discard
	}
	if p.EpisodeTime <= 0 {
		p.EpisodeTime = 60 * time.Second
	}
	if p.CheckpointInterval <= 0 {
		p.CheckpointInterval = 5
	}
	if p.CheckpointPause <= 0 {
		p.CheckpointPause = 2 * time.Second
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{p: p, log: log}, nil
}

// Run walks the indexed moves until the last move is recorded, the operator
// quits, or a stop signal is observed. Collaborator failures end the session.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	if c.p.Index.Len() == 0 {
		return Summary{}, pgnindex.ErrNoMoves
	}

	moveIdx := clamp(c.p.StartIndex, 0, c.p.Index.Len()-1)
	recorded := 0

	// let the operator verify the scene before the first episode
	if err := c.observe(ctx); err != nil {
		return Summary{LastIndex: moveIdx}, err
	}

	for moveIdx < c.p.Index.Len() {
		if c.p.Signals.StopRequested() || ctx.Err() != nil {
			break
		}

		entry, err := c.p.Index.Get(ctx, moveIdx)
		if err != nil {
			return Summary{RecordedEpisodes: recorded, LastIndex: moveIdx}, err
		}
		c.present(ctx, moveIdx, entry)

		cmd, err := c.promptCommand(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Summary{RecordedEpisodes: recorded, LastIndex: moveIdx}, err
		}

		switch cmd {
		case CmdQuit:
			c.p.Signals.RaiseStop()

		case CmdNext:
			if moveIdx >= c.p.Index.Len()-1 {
				c.printMsg("notice.last_move", nil)
			} else {
				moveIdx++
				c.saveProgress(ctx, moveIdx, recorded)
			}

		case CmdPrev:
			if moveIdx <= 0 {
				c.printMsg("notice.first_move", nil)
			} else {
				moveIdx--
				c.saveProgress(ctx, moveIdx, recorded)
			}

		case CmdRecord:
			committed, err := c.recordEpisode(ctx, moveIdx, entry)
			if err != nil {
				return Summary{RecordedEpisodes: recorded, LastIndex: moveIdx}, err
			}
			if !committed {
				continue // same index, fresh attempt or stop
			}
			recorded++
			moveIdx++
			c.saveProgress(ctx, moveIdx, recorded)
			if recorded%c.p.CheckpointInterval == 0 {
				if err := c.checkpoint(ctx); err != nil {
					return Summary{RecordedEpisodes: recorded, LastIndex: moveIdx}, err
				}
			}
		}
	}

	c.announce(ctx, "say.stop", nil)
	c.log.Info("session finished",
		zap.Int("recorded_episodes", recorded),
		zap.Int("last_index", moveIdx),
	)
	return Summary{RecordedEpisodes: recorded, LastIndex: moveIdx}, nil
}

func (c *Controller) present(ctx context.Context, moveIdx int, entry pgnindex.Entry) {
	data := map[string]any{
		"Index": moveIdx + 1,
		"Total": c.p.Index.Len(),
		"SAN":   entry.SAN,
		"FEN":   entry.FEN,
	}
	header := c.p.Messages.MustRender("present.header", data)
	fmt.Fprintln(c.p.Out, header)
	fmt.Fprintln(c.p.Out, c.p.Messages.MustRender("present.fen", data))

	if c.p.Display != nil {
		if err := c.p.Display.ShowImage(ctx, entry.Image); err != nil {
			c.log.Warn("show image failed", zap.Int("move_idx", moveIdx), zap.Error(err))
		}
		if err := c.p.Display.ShowText(ctx, header); err != nil {
			c.log.Warn("show text failed", zap.Int("move_idx", moveIdx), zap.Error(err))
		}
	}
}

// promptCommand re-prompts until a recognized token arrives. Parsing never
// mutates session state.
func (c *Controller) promptCommand(ctx context.Context) (Command, error) {
	c.printMsg("prompt.command", nil)
	for {
		line, err := c.p.Input.ReadLine(ctx)
		if err != nil {
			return CmdQuit, err
		}
		cmd := ParseCommand(line)
		if cmd == CmdUnknown {
			c.printMsg("prompt.invalid", nil)
			continue
		}
		return cmd, nil
	}
}

// recordEpisode runs one bounded recording attempt at moveIdx. It returns
// true when the episode was committed and the loop may advance.
func (c *Controller) recordEpisode(ctx context.Context, moveIdx int, entry pgnindex.Entry) (bool, error) {
	task := TaskLabel(entry.FEN, entry.SAN)
	fmt.Fprintln(c.p.Out, task)
	c.announce(ctx, "say.recording", map[string]any{
		"Index": moveIdx + 1,
		"Total": c.p.Index.Len(),
	})

	started := time.Now()
	outcome, err := c.p.Recorder.Record(ctx, task, c.p.EpisodeTime)
	if err != nil {
		return false, fmt.Errorf("record move %d: %w", moveIdx+1, err)
	}

	if outcome == OutcomeRerecord || c.p.Signals.ConsumeRerecord() {
		c.announce(ctx, "say.rerecord", nil)
		c.p.Signals.ClearEpisodeFlags()
		if err := c.p.Store.DiscardEpisode(ctx); err != nil {
			return false, fmt.Errorf("discard episode: %w", err)
		}
		return false, nil
	}

	if outcome == OutcomeStop || c.p.Signals.StopRequested() {
		// never commit a half-captured episode
		c.p.Signals.RaiseStop()
		if err := c.p.Store.DiscardEpisode(ctx); err != nil {
			return false, fmt.Errorf("discard episode: %w", err)
		}
		return false, nil
	}

	if err := c.p.Store.CommitEpisode(ctx); err != nil {
		return false, fmt.Errorf("commit episode: %w", err)
	}
	if c.p.Journal != nil {
		rec := EpisodeRecord{
			ID:         uuid.NewString(),
			RepoID:     c.p.RepoID,
			MoveIndex:  moveIdx,
			FEN:        entry.FEN,
			SAN:        entry.SAN,
			Task:       task,
			Duration:   time.Since(started),
			RecordedAt: time.Now().UTC(),
		}
		if err := c.p.Journal.SaveEpisode(ctx, rec); err != nil {
			return false, fmt.Errorf("journal episode: %w", err)
		}
	}
	c.log.Info("episode committed", zap.Int("move_idx", moveIdx), zap.String("san", entry.SAN))
	return true, nil
}

// checkpoint pauses so the operator can adjust lighting and board placement.
func (c *Controller) checkpoint(ctx context.Context) error {
	c.printMsg("notice.checkpoint", nil)
	c.announce(ctx, "say.checkpoint", nil)
	if err := sleepCtx(ctx, c.p.CheckpointPause); err != nil {
		return err
	}
	return c.observe(ctx)
}

func (c *Controller) observe(ctx context.Context) error {
	if c.p.Observer == nil {
		return nil
	}
	c.announce(ctx, "say.observe", nil)
	return c.p.Observer.Observe(ctx)
}

func (c *Controller) saveProgress(ctx context.Context, moveIdx, episodes int) {
	if c.p.Progress == nil {
		return
	}
	if err := c.p.Progress.SaveProgress(ctx, moveIdx, episodes); err != nil {
		c.log.Warn("save progress failed", zap.Int("move_idx", moveIdx), zap.Error(err))
	}
}

func (c *Controller) announce(ctx context.Context, key string, data map[string]any) {
	if c.p.Announce == nil {
		return
	}
	if err := c.p.Announce.Say(ctx, c.p.Messages.MustRender(key, data)); err != nil {
		c.log.Warn("announce failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Controller) printMsg(key string, data map[string]any) {
	fmt.Fprintln(c.p.Out, c.p.Messages.MustRender(key, data))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
