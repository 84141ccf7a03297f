package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type MoveHighlight struct {
	From xiangqi.Position
	To   xiangqi.Position
}

type Options struct {
	Highlight *MoveHighlight
	// Header is printed above the board, Turn right-aligned next to it.
	Header string
	Turn   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board xiangqi.Board, opts Options) ([]byte, error)
}

const (
	cellSize     = 56
	margin       = 40
	headerHeight = 36
	discSize     = 50

	boardWidth  = cellSize * (xiangqi.Cols - 1)
	boardHeight = cellSize * (xiangqi.Rows - 1)
	totalWidth  = boardWidth + margin*2
	totalHeight = boardHeight + margin*2 + headerHeight
)

var (
	backgroundColor = color.RGBA{233, 207, 163, 255}
	headerColor     = color.RGBA{28, 31, 46, 255}
	headerText      = color.RGBA{236, 239, 255, 255}
	labelColor      = color.RGBA{92, 64, 40, 255}
	fromHighlight   = color.NRGBA{R: 255, G: 228, B: 120, A: 120}
	toHighlight     = color.NRGBA{R: 255, G: 200, B: 60, A: 170}
)

type svgBoardRenderer struct {
	once    sync.Once
	grid    *image.RGBA
	gridErr error
}

func NewBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{}
}

// Size is the pixel size of every rendered image.
func Size() (int, int) { return totalWidth, totalHeight }

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board xiangqi.Board, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.once.Do(func() { r.grid, r.gridErr = rasterizeSVG(gridSVG(), totalWidth, totalHeight) })
	if r.gridErr != nil {
		return nil, fmt.Errorf("board grid: %w", r.gridErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), r.grid, image.Point{}, imagedraw.Src)

	drawHeader(img, opts.Header, opts.Turn)
	drawCoordinates(img)
	if opts.Highlight != nil {
		drawIntersectionOverlay(img, opts.Highlight.From, fromHighlight)
		drawIntersectionOverlay(img, opts.Highlight.To, toHighlight)
	}
	if err := drawPieces(img, board); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// intersection returns the pixel center of a board point.
func intersection(p xiangqi.Position) image.Point {
	return image.Point{X: margin + p.Col*cellSize, Y: headerHeight + margin + p.Row*cellSize}
}

// gridSVG draws the lines of the board: ranks, files broken at the river,
// and the palace diagonals.
func gridSVG() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		totalWidth, totalHeight, totalWidth, totalHeight)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="#E9CFA3"/>`, totalWidth, totalHeight)

	line := func(a, c xiangqi.Position, width float64) {
		p, q := intersection(a), intersection(c)
		fmt.Fprintf(&b, `<path d="M %d %d L %d %d" stroke="#5C4028" stroke-width="%.1f" fill="none"/>`, p.X, p.Y, q.X, q.Y, width)
	}
	for row := 0; row < xiangqi.Rows; row++ {
		line(xiangqi.Pos(row, 0), xiangqi.Pos(row, xiangqi.Cols-1), 1.5)
	}
	for col := 0; col < xiangqi.Cols; col++ {
		if col == 0 || col == xiangqi.Cols-1 {
			line(xiangqi.Pos(0, col), xiangqi.Pos(xiangqi.Rows-1, col), 1.5)
			continue
		}
		line(xiangqi.Pos(0, col), xiangqi.Pos(4, col), 1.5)
		line(xiangqi.Pos(5, col), xiangqi.Pos(9, col), 1.5)
	}
	for _, top := range []int{0, 7} {
		line(xiangqi.Pos(top, 3), xiangqi.Pos(top+2, 5), 1)
		line(xiangqi.Pos(top, 5), xiangqi.Pos(top+2, 3), 1)
	}

	// outer frame
	o := intersection(xiangqi.Pos(0, 0))
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#5C4028" stroke-width="3"/>`,
		o.X-6, o.Y-6, boardWidth+12, boardHeight+12)
	b.WriteString(`</svg>`)
	return b.String()
}

func drawPieces(dst *image.RGBA, board xiangqi.Board) error {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for _, c := range []xiangqi.Color{xiangqi.Red, xiangqi.Black} {
		disc, err := pieceDisc(c, discSize)
		if err != nil {
			return err
		}
		drawer.Src = image.NewUniform(inkRGBA(c))
		for _, pl := range board.AllPieces(c) {
			center := intersection(pl.Pos)
			rect := image.Rect(center.X-discSize/2, center.Y-discSize/2, center.X+discSize/2, center.Y+discSize/2)
			imagedraw.Draw(dst, rect, disc, image.Point{}, imagedraw.Over)
			drawCenteredText(drawer, pieceLabel(pl.Piece), center.X, center.Y+ascent/2-1)
		}
	}
	return nil
}

func drawIntersectionOverlay(dst *image.RGBA, p xiangqi.Position, clr color.Color) {
	if !p.Valid() {
		return
	}
	c := intersection(p)
	half := cellSize / 2
	rect := image.Rect(c.X-half, c.Y-half, c.X+half, c.Y+half)
	imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// drawCoordinates labels files a..i below and ranks 0..9 left of the board,
// both from red's side as in ICCS notation.
func drawCoordinates(dst *image.RGBA) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(labelColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	bottom := intersection(xiangqi.Pos(xiangqi.Rows-1, 0)).Y
	for col := 0; col < xiangqi.Cols; col++ {
		x := intersection(xiangqi.Pos(0, col)).X
		drawCenteredText(drawer, string(rune('a'+col)), x, bottom+margin/2+ascent/2)
	}
	for row := 0; row < xiangqi.Rows; row++ {
		y := intersection(xiangqi.Pos(row, 0)).Y
		drawCenteredText(drawer, strconv.Itoa(xiangqi.Rows-1-row), margin/2-4, y+ascent/2)
	}
}

func drawHeader(dst *image.RGBA, title, turn string) {
	if title == "" && turn == "" {
		return
	}
	imagedraw.Draw(dst, image.Rect(0, 0, totalWidth, headerHeight), image.NewUniform(headerColor), image.Point{}, imagedraw.Src)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(headerText)}
	baseline := headerHeight/2 + face.Metrics().Ascent.Ceil()/2

	turnWidth := 0
	if turn != "" {
		turnWidth = font.MeasureString(face, turn).Ceil()
		drawer.Dot = fixed.P(totalWidth-margin/2-turnWidth, baseline)
		drawer.DrawString(turn)
	}
	maxTitle := totalWidth - margin - turnWidth - 16
	drawer.Dot = fixed.P(margin/2, baseline)
	drawer.DrawString(truncateWithEllipsis(face, title, maxTitle))
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	w := font.MeasureString(drawer.Face, text).Ceil()
	drawer.Dot = fixed.P(centerX-w/2, baseline)
	drawer.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	if maxWidth <= 0 || text == "" {
		return ""
	}
	if font.MeasureString(face, text).Ceil() <= maxWidth {
		return text
	}
	const ellipsis = "..."
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}
