// Package imaging converts emailed photos into a baseline JPEG the OCR
// providers accept.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"github.com/gen2brain/heic"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// heifBrands are the ftyp major brands decoded as HEIF in addition to the
// "heic" brand the heic package registers itself.
var heifBrands = []string{"heix", "heim", "heis", "hevc", "hevx", "mif1", "msf1", "heif"}

func init() {
	for _, brand := range heifBrands {
		image.RegisterFormat("heif", "????ftyp"+brand, heic.Decode, heic.DecodeConfig)
	}
}

// Normalizer decodes any supported image, flattens it onto white, optionally
// downsizes it, and re-encodes it as JPEG.
type Normalizer struct {
	Quality int
	// MaxDimension caps the longest side in pixels. Zero keeps the size.
	MaxDimension int
}

// New returns a Normalizer, defaulting an out-of-range quality.
func New(quality, maxDimension int) *Normalizer {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{Quality: quality, MaxDimension: max(maxDimension, 0)}
}

// Normalize returns the JPEG re-encoding of data. On any failure, including
// a decoder panic, the original bytes are returned.
func (n *Normalizer) Normalize(data []byte, filename string) (out []byte) {
	if len(data) == 0 {
		return data
	}
	log := zap.L().With(zap.String("component", "imaging"), zap.String("filename", filename))

	defer func() {
		if r := recover(); r != nil {
			log.Error("imaging: normalize panicked, using original bytes", zap.Any("panic", r))
			out = data
		}
	}()

	encoded, format, err := n.normalize(data)
	if err != nil {
		log.Warn("imaging: normalize failed, using original bytes", zap.Error(err))
		return data
	}
	log.Info("imaging: normalized to jpeg",
		zap.String("format", format),
		zap.Int("bytes_in", len(data)),
		zap.Int("bytes_out", len(encoded)),
	)
	return encoded
}

func (n *Normalizer) normalize(data []byte) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", eris.Wrap(err, "imaging: decode")
	}

	img := flatten(src)
	img = n.downscale(img)

	quality := n.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, format, eris.Wrap(err, "imaging: encode jpeg")
	}
	return buf.Bytes(), format, nil
}

// flatten composites src over an opaque white canvas, dropping alpha.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func (n *Normalizer) downscale(img *image.RGBA) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longest := max(w, h)
	if n.MaxDimension <= 0 || longest <= n.MaxDimension {
		return img
	}

	nw := max(1, w*n.MaxDimension/longest)
	nh := max(1, h*n.MaxDimension/longest)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Describe reports the format and dimensions of data without normalizing it.
func Describe(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", eris.Wrap(err, "imaging: decode config")
	}
	return fmt.Sprintf("%s %dx%d", format, cfg.Width, cfg.Height), nil
}
