package imageproc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var _ output.ScreenshotPreparer = (*Preparer)(nil)

// Preparer checks that a screenshot decodes and downscales wide images before
// they are sent to the model. Normalized coordinates do not depend on pixel
// size, so resizing never changes the meaning of an action.
type Preparer struct {
	maxWidth int
	quality  int
}

func NewPreparer(maxWidth, jpegQuality int) *Preparer {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 80
	}
	return &Preparer{maxWidth: maxWidth, quality: jpegQuality}
}

func (p *Preparer) Prepare(shot entity.Screenshot) (entity.Screenshot, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(shot.Data))
	if err != nil {
		return entity.Screenshot{}, fmt.Errorf("screenshot is not a valid image: %w", err)
	}

	shot.Width, shot.Height = cfg.Width, cfg.Height
	if sniffed := formatMime(format); sniffed != "" {
		shot.MimeType = sniffed
	}

	if p.maxWidth <= 0 || cfg.Width <= p.maxWidth {
		return shot, nil
	}

	img, err := imaging.Decode(bytes.NewReader(shot.Data))
	if err != nil {
		return entity.Screenshot{}, fmt.Errorf("image decode failed: %w", err)
	}
	img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return entity.Screenshot{}, fmt.Errorf("jpeg encode failed: %w", err)
	}

	shot.Data = buf.Bytes()
	shot.MimeType = entity.MimeJPEG
	shot.Width = img.Bounds().Dx()
	shot.Height = img.Bounds().Dy()
	return shot, nil
}

// DetectMimeType sniffs the image type from its first bytes.
func DetectMimeType(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	if entity.SupportedMimeType(mime) {
		return mime, true
	}
	return "", false
}

func formatMime(format string) string {
	switch format {
	case "png":
		return entity.MimePNG
	case "jpeg":
		return entity.MimeJPEG
	case "webp":
		return entity.MimeWEBP
	}
	return ""
}
