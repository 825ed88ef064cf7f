package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is how the viewer treats a file.
type Kind int

const (
	Unsupported Kind = iota
	Image            // a single page
	Document         // a multi-page container rendered through MuPDF
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Document:
		return "document"
	}
	return "unsupported"
}

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
	Kind      Kind
	IsPDF     bool
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// documentByExt resolves ZIP-based containers that mimetype reports as
// plain archives.
var documentByExt = map[string]string{
	".cbz":  "application/vnd.comicbook+zip",
	".epub": "application/epub+zip",
	".xps":  "application/oxps",
	".oxps": "application/oxps",
}

var documentMIME = map[string]bool{
	"application/pdf":                true,
	"application/epub+zip":           true,
	"application/vnd.comicbook+zip":  true,
	"application/oxps":               true,
	"application/vnd.ms-xpsdocument": true,
	"application/x-mobipocket-ebook": true,
	"application/x-fictionbook+xml":  true,
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()
	ext := strings.ToLower(filepath.Ext(filePath))

	if mtype.Is("application/zip") {
		if override, ok := documentByExt[ext]; ok {
			log.Debug().Str("original", mimeType).Str("override", override).Msg("overriding ZIP detection based on extension")
			mimeType = override
			extension = ext
		}
	}
	if ext == ".fb2" && strings.HasPrefix(mimeType, "text/xml") {
		mimeType = "application/x-fictionbook+xml"
		extension = ext
	}

	info := &FileTypeInfo{MIMEType: mimeType, Extension: extension}
	d.classify(info)

	log.Debug().Str("mime", mimeType).Str("kind", info.Kind.String()).Str("file", filePath).Msg("detected file type")
	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo) {
	base := info.MIMEType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch {
	case strings.HasPrefix(base, "image/"):
		info.Kind = Image
	case documentMIME[base]:
		info.Kind = Document
		info.IsPDF = base == "application/pdf"
	default:
		info.Kind = Unsupported
	}
}
