package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const pieceSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">
<circle cx="50" cy="50" r="46" fill="#F6E7C8" stroke="%[1]s" stroke-width="5"/>
<circle cx="50" cy="50" r="36" fill="none" stroke="%[1]s" stroke-width="2"/>
</svg>`

var inkColors = map[xiangqi.Color]string{
	xiangqi.Red:   "#B3261E",
	xiangqi.Black: "#1F1F1F",
}

type pieceCacheKey struct {
	color xiangqi.Color
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceDisc returns the disc a piece of color c is drawn on. Labels are
// drawn separately, so one image serves every piece type of a color.
func pieceDisc(c xiangqi.Color, size int) (image.Image, error) {
	key := pieceCacheKey{color: c, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	ink, ok := inkColors[c]
	if !ok {
		return nil, fmt.Errorf("no piece color for %s", c)
	}
	img, err := rasterizeSVG(fmt.Sprintf(pieceSVG, ink), size, size)
	if err != nil {
		return nil, fmt.Errorf("piece disc %s: %w", c, err)
	}

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

func rasterizeSVG(src string, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

// pieceLabel is the letter printed on a disc.
func pieceLabel(p xiangqi.Piece) string {
	return strings.ToUpper(string(p.Letter()))
}

func inkRGBA(c xiangqi.Color) color.RGBA {
	if c == xiangqi.Red {
		return color.RGBA{R: 179, G: 38, B: 30, A: 255}
	}
	return color.RGBA{R: 31, G: 31, B: 31, A: 255}
}
