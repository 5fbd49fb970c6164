package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"nav-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreparer_KeepsSmallImage(t *testing.T) {
	data := pngBytes(t, 800, 600)

	shot, err := NewPreparer(1280, 80).Prepare(entity.Screenshot{Data: data, MimeType: entity.MimePNG, Ref: "r1"})
	require.NoError(t, err)

	assert.Equal(t, data, shot.Data)
	assert.Equal(t, entity.MimePNG, shot.MimeType)
	assert.Equal(t, 800, shot.Width)
	assert.Equal(t, 600, shot.Height)
	assert.Equal(t, "r1", shot.Ref)
}

func TestPreparer_DownscalesWideImage(t *testing.T) {
	data := pngBytes(t, 2560, 1440)

	shot, err := NewPreparer(1280, 75).Prepare(entity.Screenshot{Data: data, MimeType: entity.MimePNG, Ref: "r2"})
	require.NoError(t, err)

	assert.Equal(t, entity.MimeJPEG, shot.MimeType)
	assert.Equal(t, 1280, shot.Width)
	assert.Equal(t, 720, shot.Height)
	assert.Equal(t, "r2", shot.Ref)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(shot.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1280, cfg.Width)
}

func TestPreparer_ZeroWidthDisablesResize(t *testing.T) {
	data := pngBytes(t, 2000, 100)

	shot, err := NewPreparer(0, 80).Prepare(entity.Screenshot{Data: data, MimeType: entity.MimePNG})
	require.NoError(t, err)
	assert.Equal(t, data, shot.Data)
}

func TestPreparer_CorrectsDeclaredMime(t *testing.T) {
	data := pngBytes(t, 10, 10)

	shot, err := NewPreparer(1280, 80).Prepare(entity.Screenshot{Data: data, MimeType: entity.MimeJPEG})
	require.NoError(t, err)
	assert.Equal(t, entity.MimePNG, shot.MimeType)
}

func TestPreparer_RejectsGarbage(t *testing.T) {
	_, err := NewPreparer(1280, 80).Prepare(entity.Screenshot{Data: []byte("not an image"), MimeType: entity.MimePNG})
	assert.Error(t, err)
}

func TestDetectMimeType(t *testing.T) {
	mime, ok := DetectMimeType(pngBytes(t, 2, 2))
	assert.True(t, ok)
	assert.Equal(t, entity.MimePNG, mime)

	_, ok = DetectMimeType([]byte("plain text"))
	assert.False(t, ok)
}
