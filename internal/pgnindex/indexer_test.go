package pgnindex

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/lechess/lechess-record/internal/boardimg"
)

// stubRenderer avoids rasterizing real boards in indexer tests.
type stubRenderer struct{ calls int }

func (r *stubRenderer) RenderPNG(_ context.Context, board *nchess.Board, _ boardimg.RenderOptions) ([]byte, error) {
	r.calls++
	if board == nil {
		return nil, errors.New("nil board")
	}
	return []byte("png"), nil
}

const samplePGN = "1. e4 e5 2. Nf3 *"

func fenAfter(t *testing.T, uciMoves ...string) string {
	t.Helper()
	g := nchess.NewGame()
	for _, mv := range uciMoves {
		if err := g.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("push %s: %v", mv, err)
		}
	}
	return g.FEN()
}

func TestWhiteFilterScenario(t *testing.T) {
	idx, err := New(strings.NewReader(samplePGN), FilterWhite, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 white moves, got %d", idx.Len())
	}

	ctx := context.Background()
	e0, err := idx.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if e0.FEN != fenAfter(t) {
		t.Fatalf("Get(0) FEN = %q, want starting position", e0.FEN)
	}
	if e0.SAN != "e4" {
		t.Fatalf("Get(0) SAN = %q, want e4", e0.SAN)
	}

	// skipped black reply must still have advanced the cursor
	e1, err := idx.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if want := fenAfter(t, "e2e4", "e7e5"); e1.FEN != want {
		t.Fatalf("Get(1) FEN = %q, want %q", e1.FEN, want)
	}
	if e1.SAN != "Nf3" {
		t.Fatalf("Get(1) SAN = %q, want Nf3", e1.SAN)
	}
}

func TestBlackFilter(t *testing.T) {
	idx, err := New(strings.NewReader(samplePGN), FilterBlack, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 black move, got %d", idx.Len())
	}
	e, err := idx.Get(context.Background(), 0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if e.SAN != "e5" {
		t.Fatalf("SAN = %q, want e5", e.SAN)
	}
	if want := fenAfter(t, "e2e4"); e.FEN != want {
		t.Fatalf("FEN = %q, want %q", e.FEN, want)
	}
}

func TestNoFilterKeepsEveryPly(t *testing.T) {
	idx, err := New(strings.NewReader(samplePGN), FilterNone, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 moves, got %d", idx.Len())
	}
}

func TestGetIsIdempotent(t *testing.T) {
	idx, err := New(strings.NewReader(samplePGN), FilterWhite, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	a, err := idx.Get(ctx, 1)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	b, err := idx.Get(ctx, 1)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if a.FEN != b.FEN || a.SAN != b.SAN || !bytes.Equal(a.Image, b.Image) {
		t.Fatalf("repeated Get diverged: %+v vs %+v", a, b)
	}
}

func TestFilterMatchesZeroMoves(t *testing.T) {
	idx, err := New(strings.NewReader("1. e4 *"), FilterBlack, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
}

func TestInvalidGame(t *testing.T) {
	if _, err := New(strings.NewReader("1. zz9 qq7 *"), FilterNone, &stubRenderer{}); !errors.Is(err, ErrInvalidGame) {
		t.Fatalf("expected ErrInvalidGame, got %v", err)
	}
}

func TestIndexOutOfRange(t *testing.T) {
	idx, err := New(strings.NewReader(samplePGN), FilterWhite, &stubRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if _, err := idx.Get(ctx, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Get(-1): expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := idx.Get(ctx, idx.Len()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Get(len): expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestParseColorFilter(t *testing.T) {
	if f, err := ParseColorFilter(" White "); err != nil || f != FilterWhite {
		t.Fatalf("ParseColorFilter(White) = %v, %v", f, err)
	}
	if f, err := ParseColorFilter(""); err != nil || f != FilterNone {
		t.Fatalf("ParseColorFilter(empty) = %v, %v", f, err)
	}
	if _, err := ParseColorFilter("green"); err == nil {
		t.Fatalf("expected error for unknown color")
	}
}
