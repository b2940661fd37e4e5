// Package pgnindex gives indexed access to the moves of a PGN game. Each
// retained entry resolves to the position before the move, the SAN notation,
// and a rendered board image.
package pgnindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/lechess/lechess-record/internal/boardimg"
)

var (
	// ErrInvalidGame means the source held no parseable game.
	ErrInvalidGame = errors.New("no valid PGN game found")
	// ErrIndexOutOfRange is a contract violation on Get.
	ErrIndexOutOfRange = errors.New("move index out of range")
	// ErrNoMoves means the color filter matched zero moves.
	ErrNoMoves = errors.New("no moves match the color filter")
)

// ColorFilter restricts the indexed moves to one side.
type ColorFilter string

const (
	FilterNone  ColorFilter = ""
	FilterWhite ColorFilter = "white"
	FilterBlack ColorFilter = "black"
)

// ParseColorFilter validates an operator-supplied color token.
func ParseColorFilter(s string) (ColorFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FilterNone, nil
	case "white":
		return FilterWhite, nil
	case "black":
		return FilterBlack, nil
	default:
		return FilterNone, fmt.Errorf("unknown color filter %q", s)
	}
}

func (f ColorFilter) matches(turn nchess.Color) bool {
	switch f {
	case FilterWhite:
		return turn == nchess.White
	case FilterBlack:
		return turn == nchess.Black
	default:
		return true
	}
}

// Entry is one indexed move: the position it is played from, its SAN
// notation, and a PNG of the board with the move highlighted.
type Entry struct {
	FEN   string
	SAN   string
	Image []byte
}

type indexedMove struct {
	fen string
	uci string
}

// Indexer is read-only after construction. Notation and image are recomputed
// on every Get so repeated access of the same index is side-effect free.
type Indexer struct {
	renderer boardimg.BoardRenderer
	entries  []indexedMove
}

// New parses a single PGN game and indexes the mainline moves whose side to
// move matches filter. The replay cursor is pushed through every move,
// filtered or not, so that the stored positions of later retained moves stay
// correct.
func New(r io.Reader, filter ColorFilter, renderer boardimg.BoardRenderer) (*Indexer, error) {
	pgn, err := nchess.PGN(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	source := nchess.NewGame(pgn)
	moves := source.Moves()
	if len(moves) == 0 {
		return nil, ErrInvalidGame
	}

	cursor := nchess.NewGame()
	entries := make([]indexedMove, 0, len(moves))
	for i := range moves {
		uci := moves[i].String()
		if filter.matches(cursor.Position().Turn()) {
			entries = append(entries, indexedMove{fen: cursor.FEN(), uci: uci})
		}
		if err := cursor.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: replay %s: %v", ErrInvalidGame, uci, err)
		}
	}

	return &Indexer{renderer: renderer, entries: entries}, nil
}

// Len returns the number of retained moves.
func (x *Indexer) Len() int { return len(x.entries) }

// Get resolves the entry at index i, rendering notation and image fresh from
// the stored position.
func (x *Indexer) Get(ctx context.Context, i int) (Entry, error) {
	if i < 0 || i >= len(x.entries) {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(x.entries))
	}
	m := x.entries[i]

	fen, err := nchess.FEN(m.fen)
	if err != nil {
		return Entry{}, fmt.Errorf("restore position %d: %w", i, err)
	}
	pos := nchess.NewGame(fen).Position()

	mv, err := nchess.UCINotation{}.Decode(pos, m.uci)
	if err != nil {
		return Entry{}, fmt.Errorf("decode move %s at %d: %w", m.uci, i, err)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)

	png, err := x.renderer.RenderPNG(ctx, pos.Board(), boardimg.RenderOptions{
		Highlight: &boardimg.MoveHighlight{From: mv.S1(), To: mv.S2()},
		Header:    fmt.Sprintf("Move %d/%d: %s", i+1, len(x.entries), san),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("render board at %d: %w", i, err)
	}

	return Entry{FEN: m.fen, SAN: san, Image: png}, nil
}
