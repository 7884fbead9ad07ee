package media

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"jobboard/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURL(t *testing.T) {
	t.Parallel()
	png := SolidPNG(4, 3, color.RGBA{R: 200, A: 255})

	tests := []struct {
		name    string
		input   string
		wantErr bool
		mime    string
	}{
		{"Valid PNG", EncodeDataURL("image/png", png), false, "image/png"},
		{"Uppercase MIME", EncodeDataURL("IMAGE/PNG", png), false, "image/png"},
		{"Missing Prefix", "image/png;base64,AAAA", true, ""},
		{"Missing Comma", "data:image/png;base64", true, ""},
		{"Not Base64 Flag", "data:image/png,AAAA", true, ""},
		{"Bad Payload", "data:image/png;base64,@@@", true, ""},
		{"Empty Payload", "data:image/png;base64,", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDataURL(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDataURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mime, d.MIME)
			assert.Equal(t, png, d.Data)
		})
	}
}

func TestDataURL_String(t *testing.T) {
	s := SolidPNGDataURL(2, 2, color.White)
	d, err := ParseDataURL(s)
	require.NoError(t, err)
	assert.Equal(t, s, d.String())
}

func TestInspectDataURL(t *testing.T) {
	_, info, err := InspectDataURL(SolidPNGDataURL(5, 7, color.Black))
	require.NoError(t, err)
	assert.Equal(t, Info{Format: "png", MIME: "image/png", Width: 5, Height: 7}, info)

	_, _, err = InspectDataURL(EncodeDataURL("image/png", []byte("not an image")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = InspectDataURL(EncodeDataURL("text/plain", SolidPNG(1, 1, color.Black)))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestNormalize_DownscalesToJPEG(t *testing.T) {
	src := SolidPNG(400, 100, color.RGBA{G: 180, A: 255})

	out, info, err := Normalize(src, Options{MaxEdge: 200})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", info.MIME)
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 50, info.Height)

	d, err := ParseDataURL(out)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(d.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
}

func TestNormalize_KeepsSmallImagesAndEncodesWebP(t *testing.T) {
	out, info, err := Normalize(SolidPNG(30, 20, color.White), Options{MaxEdge: 2048, WebP: true})
	require.NoError(t, err)
	assert.Equal(t, Info{Format: "webp", MIME: "image/webp", Width: 30, Height: 20}, info)

	d, err := ParseDataURL(out)
	require.NoError(t, err)
	decoded, err := Inspect(d.Data)
	require.NoError(t, err)
	assert.Equal(t, "webp", decoded.Format)
}

func TestNormalize_Rejects(t *testing.T) {
	_, _, err := Normalize(SolidPNG(10, 10, color.White), Options{MaxBytes: 10})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Normalize([]byte("plain text"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	// a few hundred bytes declaring 50000x50000 must be refused before decoding
	huge := testutil.PNGHeader(50000, 50000)
	require.Less(t, len(huge), 100)
	_, _, err = Normalize(huge, Options{MaxBytes: 5 << 20})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Normalize(testutil.PNGHeader(300, 300), Options{MaxPixels: 80_000})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCheckPixels(t *testing.T) {
	assert.NoError(t, CheckPixels(Info{Width: 6000, Height: 6000}, 0))
	assert.ErrorIs(t, CheckPixels(Info{Width: 12000, Height: 12000}, 0), ErrTooLarge)
	assert.NoError(t, CheckPixels(Info{Width: 100, Height: 100}, 10_000))
	assert.ErrorIs(t, CheckPixels(Info{Width: 101, Height: 100}, 10_000), ErrTooLarge)

	info, err := Inspect(testutil.PNGHeader(50000, 50000))
	require.NoError(t, err)
	assert.Equal(t, 50000, info.Width)
	assert.ErrorIs(t, CheckPixels(info, 0), ErrTooLarge)
}
