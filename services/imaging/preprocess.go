package imaging

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

const (
	DefaultMaxWidth = 640
	DefaultQuality  = 70
)

var (
	// errors
	ErrEmptyFrame = errors.New("empty frame")
)

// Preprocessor downsizes frames to at most maxWidth pixels wide and re-encodes them as JPEG.
type Preprocessor struct {
	maxWidth int
	quality  int
}

var _ live.Preprocessor = (*Preprocessor)(nil)

func NewPreprocessor(conf core.CaptureConfig) *Preprocessor {
	p := &Preprocessor{maxWidth: conf.MaxWidth, quality: conf.Quality}
	if p.maxWidth <= 0 {
		p.maxWidth = DefaultMaxWidth
	}
	if p.quality <= 0 || p.quality > 100 {
		p.quality = DefaultQuality
	}
	return p
}

func (p *Preprocessor) Preprocess(ctx context.Context, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decoding frame")
	}

	img := Fit(src, p.maxWidth)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, errors.Wrap(err, "encoding frame")
	}
	return buf.Bytes(), nil
}

// Fit scales src down to maxWidth, keeping its aspect ratio. Narrower images are returned as is.
func Fit(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return src
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
