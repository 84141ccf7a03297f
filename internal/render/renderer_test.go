package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"golang.org/x/image/font/basicfont"
)

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestRenderInitialBoard(t *testing.T) {
	r := NewBoardRenderer()
	out, err := r.RenderPNG(context.Background(), xiangqi.Initial(), Options{Header: "Alice vs Bob", Turn: "red to move"})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, out)
	w, h := Size()
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("size = %v, want %dx%d", img.Bounds(), w, h)
	}
	if got := rgba(img.At(3, h-3)); got != backgroundColor {
		t.Fatalf("corner pixel = %v, want background", got)
	}
	if got := rgba(img.At(3, 3)); got != headerColor {
		t.Fatalf("header pixel = %v", got)
	}

	// the red chariot's disc covers its intersection
	c := intersection(xiangqi.Pos(9, 0))
	if got := rgba(img.At(c.X+discSize/2-8, c.Y)); got == backgroundColor {
		t.Fatalf("no piece drawn at a0")
	}

	// an empty board leaves the same spot bare
	bare, err := r.RenderPNG(context.Background(), xiangqi.Empty(), Options{})
	if err != nil {
		t.Fatalf("RenderPNG empty: %v", err)
	}
	if got := rgba(decode(t, bare).At(c.X+discSize/2-8, c.Y-8)); got != backgroundColor {
		t.Fatalf("empty board pixel = %v", got)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewBoardRenderer()
	a, err := r.RenderPNG(context.Background(), xiangqi.Initial(), Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	b, err := NewBoardRenderer().RenderPNG(context.Background(), xiangqi.Initial(), Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("two renders of the same board differ")
	}
}

func TestRenderHighlightsLastMove(t *testing.T) {
	r := NewBoardRenderer()
	from, to := xiangqi.Pos(7, 7), xiangqi.Pos(7, 4)
	board := xiangqi.Initial().ApplyMove(xiangqi.Move{From: from, To: to, Piece: xiangqi.Piece{Type: xiangqi.Cannon, Color: xiangqi.Red}})

	plain, err := r.RenderPNG(context.Background(), board, Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	marked, err := r.RenderPNG(context.Background(), board, Options{Highlight: &MoveHighlight{From: from, To: to}})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	// a square corner near the vacated intersection, clear of lines and discs
	c := intersection(from)
	x, y := c.X-cellSize/2+4, c.Y-cellSize/2+4
	if rgba(decode(t, plain).At(x, y)) == rgba(decode(t, marked).At(x, y)) {
		t.Fatalf("highlight did not change the from square")
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBoardRenderer().RenderPNG(ctx, xiangqi.Initial(), Options{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPieceDiscsAreCached(t *testing.T) {
	a, err := pieceDisc(xiangqi.Black, 32)
	if err != nil {
		t.Fatalf("pieceDisc: %v", err)
	}
	b, err := pieceDisc(xiangqi.Black, 32)
	if err != nil {
		t.Fatalf("pieceDisc: %v", err)
	}
	if a != b {
		t.Fatalf("second lookup rendered a new image")
	}
	if _, err := pieceDisc(xiangqi.NoColor, 32); err == nil {
		t.Fatalf("expected error for NoColor")
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	face := basicfont.Face7x13
	if got := truncateWithEllipsis(face, "short", 100); got != "short" {
		t.Fatalf("got %q", got)
	}
	// 7px per glyph: 10 glyphs fit in 70px
	if got := truncateWithEllipsis(face, "abcdefghijklmnop", 70); got != "abcdefg..." {
		t.Fatalf("got %q", got)
	}
}
