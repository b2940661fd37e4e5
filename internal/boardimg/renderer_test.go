package boardimg

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestRenderStartingPosition(t *testing.T) {
	r := NewRasterBoardRenderer()
	board := nchess.NewGame().Position().Board()

	data, err := r.RenderPNG(context.Background(), board, RenderOptions{Header: "Move 1/3: e4"})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != boardSize+sideMargin*2 || bounds.Dy() != boardSize+topMargin+bottomMargin {
		t.Fatalf("unexpected image size %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderWithHighlight(t *testing.T) {
	r := NewRasterBoardRenderer()
	game := nchess.NewGame()
	board := game.Position().Board()

	plain, err := r.RenderPNG(context.Background(), board, RenderOptions{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	highlighted, err := r.RenderPNG(context.Background(), board, RenderOptions{
		Highlight: &MoveHighlight{From: nchess.E2, To: nchess.E4},
	})
	if err != nil {
		t.Fatalf("RenderPNG highlight: %v", err)
	}
	if bytes.Equal(plain, highlighted) {
		t.Fatalf("highlight did not change the render")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRasterBoardRenderer()
	board := nchess.NewGame().Position().Board()
	opts := RenderOptions{Highlight: &MoveHighlight{From: nchess.G1, To: nchess.F3}}

	a, err := r.RenderPNG(context.Background(), board, opts)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	b, err := r.RenderPNG(context.Background(), board, opts)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("renders of the same position differ")
	}
}

func TestRenderNilBoard(t *testing.T) {
	r := NewRasterBoardRenderer()
	if _, err := r.RenderPNG(context.Background(), nil, RenderOptions{}); err == nil {
		t.Fatalf("expected error for nil board")
	}
}

func TestPieceAssetNames(t *testing.T) {
	for _, piece := range []nchess.Piece{
		nchess.WhiteKing, nchess.WhiteQueen, nchess.WhiteRook,
		nchess.WhiteBishop, nchess.WhiteKnight, nchess.WhitePawn,
		nchess.BlackKing, nchess.BlackQueen, nchess.BlackRook,
		nchess.BlackBishop, nchess.BlackKnight, nchess.BlackPawn,
	} {
		name := pieceAssetName(piece)
		if _, err := pieceFiles.ReadFile(name); err != nil {
			t.Fatalf("missing asset for %v: %s", piece, name)
		}
	}
}
