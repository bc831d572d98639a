package remover

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Local keys out the dominant border colour of an image in-process. It is a
// CPU fallback for setups without an inference endpoint and works best on
// product shots against a plain backdrop.
type Local struct {
	tolerance    float64
	maxDimension int
	logger       *zap.Logger
}

func NewLocal(tolerance float64, maxDimension int, logger *zap.Logger) *Local {
	if tolerance <= 0 {
		tolerance = 40
	}
	return &Local{tolerance: tolerance, maxDimension: maxDimension, logger: logger}
}

func (l *Local) Remove(ctx context.Context, src []byte, cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		l.logger.Error("Failed to decode image", zap.Error(err))
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	cfg.report(10)

	var work *image.NRGBA
	b := img.Bounds()
	if l.maxDimension > 0 && (b.Dx() > l.maxDimension || b.Dy() > l.maxDimension) {
		l.logger.Debug("Downscaling image",
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()),
			zap.Int("max", l.maxDimension),
		)
		work = imaging.Fit(img, l.maxDimension, l.maxDimension, imaging.Lanczos)
	} else {
		work = imaging.Clone(img)
	}

	bg := borderColor(work)
	cfg.report(30)

	bounds := work.Bounds()
	rows := bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := work.NRGBAAt(x, y)
			c.A = l.alphaFor(distance(c, bg), c.A)
			work.SetNRGBA(x, y, c)
		}
		if rows > 0 && (y-bounds.Min.Y)%64 == 0 {
			cfg.report(30 + 60*(y-bounds.Min.Y)/rows)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, work, imaging.PNG); err != nil {
		l.logger.Error("Failed to encode PNG", zap.Error(err))
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	cfg.report(100)

	return buf.Bytes(), nil
}

// alphaFor fades pixels between one and two tolerances away from the backdrop.
func (l *Local) alphaFor(d float64, orig uint8) uint8 {
	switch {
	case d <= l.tolerance:
		return 0
	case d >= 2*l.tolerance:
		return orig
	default:
		f := (d - l.tolerance) / l.tolerance
		return uint8(math.Round(float64(orig) * f))
	}
}

func borderColor(img *image.NRGBA) color.NRGBA {
	b := img.Bounds()
	var r, g, bl, n float64
	add := func(x, y int) {
		c := img.NRGBAAt(x, y)
		r += float64(c.R)
		g += float64(c.G)
		bl += float64(c.B)
		n++
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		add(x, b.Max.Y-1)
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		add(b.Min.X, y)
		add(b.Max.X-1, y)
	}
	if n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 255}
}

func distance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
