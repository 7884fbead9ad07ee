package media

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxEdge = 2048
	// DefaultMaxPixels bounds width×height before any pixel is decoded.
	DefaultMaxPixels = 40_000_000
	JPEGQuality      = 82
	WebPQuality      = 70
)

// Info describes a decoded image header.
type Info struct {
	Format string `json:"format"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Inspect reads the image header of data without decoding pixels.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	mimeType := decodedFormatToMime(format)
	if mimeType == "" {
		return Info{}, fmt.Errorf("%w: format %q", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: empty dimensions", ErrUnsupportedImage)
	}
	return Info{Format: format, MIME: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
}

// CheckPixels returns ErrTooLarge when info declares more than maxPixels
// pixels. A non-positive maxPixels means DefaultMaxPixels.
func CheckPixels(info Info, maxPixels int) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(info.Width)*int64(info.Height) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, info.Width, info.Height, maxPixels)
	}
	return nil
}

// InspectDataURL parses s and inspects the embedded image.
func InspectDataURL(s string) (DataURL, Info, error) {
	d, err := ParseDataURL(s)
	if err != nil {
		return DataURL{}, Info{}, err
	}
	if !strings.HasPrefix(d.MIME, "image/") {
		return DataURL{}, Info{}, fmt.Errorf("%w: mime %q", ErrUnsupportedImage, d.MIME)
	}
	info, err := Inspect(d.Data)
	if err != nil {
		return DataURL{}, Info{}, err
	}
	return d, info, nil
}

// Options controls Normalize.
type Options struct {
	MaxEdge   int
	MaxBytes  int64
	MaxPixels int
	WebP      bool
}

// Normalize decodes an uploaded image, scales it down so its longest edge is
// at most MaxEdge and re-encodes it as WebP or JPEG. The result is a data-URL.
func Normalize(data []byte, opts Options) (string, Info, error) {
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return "", Info{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), opts.MaxBytes)
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = DefaultMaxEdge
	}

	// the header alone decides whether decoding is affordable
	header, err := Inspect(data)
	if err != nil {
		return "", Info{}, err
	}
	if err := CheckPixels(header, opts.MaxPixels); err != nil {
		return "", Info{}, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", Info{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	resized := resizeToFit(flatten(decoded), opts.MaxEdge, opts.MaxEdge)
	bounds := resized.Bounds()

	var (
		out  []byte
		info = Info{Width: bounds.Dx(), Height: bounds.Dy()}
	)
	if opts.WebP {
		out, err = encodeWebP(resized, WebPQuality)
		info.Format, info.MIME = "webp", "image/webp"
	} else {
		out, err = encodeJPEG(resized, JPEGQuality)
		info.Format, info.MIME = "jpeg", "image/jpeg"
	}
	if err != nil {
		return "", Info{}, fmt.Errorf("encode %s: %w", info.Format, err)
	}

	return EncodeDataURL(info.MIME, out), info, nil
}

// flatten draws src onto an opaque white canvas so transparent PNG/GIF
// areas do not turn black in JPEG output.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
