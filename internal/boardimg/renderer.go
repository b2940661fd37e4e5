package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MoveHighlight marks the move to emphasize on the rendered board.
type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

type RenderOptions struct {
	Highlight *MoveHighlight
	Header    string
}

// BoardRenderer produces a PNG snapshot of a board position.
type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type rasterBoardRenderer struct{}

func NewRasterBoardRenderer() BoardRenderer {
	return &rasterBoardRenderer{}
}

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	sideMargin   = 32
	topMargin    = 56
	bottomMargin = 32
)

var (
	lightSquare        = color.RGBA{233, 207, 163, 255}
	darkSquare         = color.RGBA{187, 136, 96, 255}
	whiteHighlightFill = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow     = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveArrow   = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	backgroundColor    = color.RGBA{24, 26, 36, 255}
	headerTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor    = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *rasterBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin)
	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	drawHighlight(img, board, opts.Highlight, origin)
	drawHeader(img, opts.Header, origin)
	drawCoordinates(img, origin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var boardRanks = []nchess.Rank{
	nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5,
	nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1,
}

var boardFiles = []nchess.File{
	nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD,
	nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH,
}

func drawSquares(dst *image.RGBA, origin image.Point) {
	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			clr := lightSquare
			if (int(file)+int(rank))%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst *image.RGBA, board *nchess.Board, origin image.Point) error {
	boardMap := board.SquareMap()
	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			piece := boardMap[sq]
			if piece == nchess.NoPiece {
				continue
			}
			img, err := pieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// drawHighlight emphasizes the pending move: white moves get square fills,
// black moves an arrow, so the operator can tell at a glance which side the
// recorded move belongs to.
func drawHighlight(img *image.RGBA, board *nchess.Board, highlight *MoveHighlight, origin image.Point) {
	if highlight == nil {
		return
	}
	switch moverColor, ok := highlightMoverColor(board, highlight); {
	case ok && moverColor == nchess.White:
		fillSquare(img, highlight.From, origin, whiteHighlightFill)
		fillSquare(img, highlight.To, origin, whiteHighlightFill)
	case ok && moverColor == nchess.Black:
		drawArrow(img, highlight.From, highlight.To, origin, blackMoveArrow)
	default:
		drawArrow(img, highlight.From, highlight.To, origin, neutralMoveArrow)
	}
}

func highlightMoverColor(board *nchess.Board, highlight *MoveHighlight) (nchess.Color, bool) {
	if board == nil {
		return nchess.NoColor, false
	}
	if piece := board.Piece(highlight.From); piece != nchess.NoPiece {
		return piece.Color(), true
	}
	if piece := board.Piece(highlight.To); piece != nchess.NoPiece {
		return piece.Color(), true
	}
	return nchess.NoColor, false
}

func fillSquare(img *image.RGBA, sq nchess.Square, origin image.Point, clr color.Color) {
	rect := squareRect(sq, origin)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func squareRect(sq nchess.Square, origin image.Point) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawHeader(img *image.RGBA, header string, origin image.Point) {
	header = strings.TrimSpace(header)
	if header == "" {
		return
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(headerTextColor),
		Face: basicfont.Face7x13,
	}
	width := drawer.MeasureString(header).Round()
	x := origin.X + (boardSize-width)/2
	if x < origin.X {
		x = origin.X
	}
	drawer.Dot = fixed.P(x, topMargin/2+basicfont.Face7x13.Ascent/2)
	drawer.DrawString(header)
}

func drawCoordinates(img *image.RGBA, origin image.Point) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(coordinateColor),
		Face: basicfont.Face7x13,
	}
	ascent := basicfont.Face7x13.Ascent

	for row, rank := range boardRanks {
		label := rank.String()
		y := origin.Y + row*squareSize + squareSize/2 + ascent/2
		width := drawer.MeasureString(label).Round()
		drawer.Dot = fixed.P(origin.X-sideMargin/2-width/2, y)
		drawer.DrawString(label)
	}
	baseline := origin.Y + boardSize + ascent + 6
	for col, file := range boardFiles {
		label := file.String()
		width := drawer.MeasureString(label).Round()
		x := origin.X + col*squareSize + squareSize/2 - width/2
		drawer.Dot = fixed.P(x, baseline)
		drawer.DrawString(label)
	}
}
