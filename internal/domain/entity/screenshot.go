package entity

import "strings"

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
)

func SupportedMimeType(mime string) bool {
	switch mime {
	case MimePNG, MimeJPEG, MimeWEBP:
		return true
	}
	return false
}

// MimeTypeFromFilename maps an upload name to one of the accepted image types.
func MimeTypeFromFilename(name string) (string, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return MimePNG, true
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return MimeJPEG, true
	case strings.HasSuffix(lower, ".webp"):
		return MimeWEBP, true
	}
	return "", false
}

// Screenshot is the image submitted for one turn. Ref identifies it in the
// session context; the bytes themselves never enter the context.
type Screenshot struct {
	Data     []byte
	MimeType string
	Ref      string
	Width    int
	Height   int
}

type PageInfo struct {
	URL    string
	Title  string
	Width  int
	Height int
}
