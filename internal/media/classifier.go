// Package media classifies Telegram message attachments into the four kinds
// the delivery API distinguishes, and derives the canonical extension and
// display filename used for staging and upload.
package media

import (
	"fmt"
	"path"
	"strings"

	"github.com/gotd/td/tg"
)

// Kind is the delivery category of an attachment.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

// Descriptor is the classification result for one attachment. It is derived
// once from a fetched message and never mutated afterwards.
type Descriptor struct {
	Kind     Kind
	Ext      string // canonical extension, with leading dot
	Filename string // display filename for the upload
	Size     int64  // advertised size in bytes, 0 when unknown
	MimeType string

	// Exactly one of Photo or Document is set.
	Photo    *tg.Photo
	Document *tg.Document

	// PhotoSizeType selects which rendition of a photo to download.
	PhotoSizeType string
	// ThumbType names a document's thumbnail rendition, empty when absent.
	ThumbType string
}

var extByMime = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/ogg":        ".ogg",
	"audio/flac":       ".flac",
	"audio/x-wav":      ".wav",
	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
}

var kindByExt = map[string]Kind{
	".jpg": KindPhoto, ".jpeg": KindPhoto, ".png": KindPhoto, ".webp": KindPhoto,
	".mp4": KindVideo, ".mkv": KindVideo, ".mov": KindVideo, ".webm": KindVideo, ".avi": KindVideo,
	".mp3": KindAudio, ".m4a": KindAudio, ".ogg": KindAudio, ".flac": KindAudio, ".wav": KindAudio,
}

var defaultExt = map[Kind]string{
	KindPhoto:    ".jpg",
	KindVideo:    ".mp4",
	KindAudio:    ".mp3",
	KindDocument: ".bin",
}

// Classify derives a Descriptor from a message's media. The second return is
// false when the media carries nothing downloadable (polls, geo points,
// unsupported types).
func Classify(media tg.MessageMediaClass) (Descriptor, bool) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return Descriptor{}, false
		}
		return classifyPhoto(photo), true
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return Descriptor{}, false
		}
		return classifyDocument(doc), true
	default:
		return Descriptor{}, false
	}
}

func classifyPhoto(photo *tg.Photo) Descriptor {
	sizeType, byteSize := largestPhotoSize(photo.Sizes)
	return Descriptor{
		Kind:          KindPhoto,
		Ext:           ".jpg",
		Filename:      fmt.Sprintf("photo_%d.jpg", photo.ID),
		Size:          byteSize,
		MimeType:      "image/jpeg",
		Photo:         photo,
		PhotoSizeType: sizeType,
	}
}

func classifyDocument(doc *tg.Document) Descriptor {
	d := Descriptor{
		Size:     doc.Size,
		MimeType: doc.MimeType,
		Document: doc,
	}

	var filename string
	hasVideoAttr := false
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeVideo:
			hasVideoAttr = true
		case *tg.DocumentAttributeFilename:
			filename = a.FileName
		}
	}

	d.Kind = resolveKind(hasVideoAttr, doc.MimeType, filename)

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = extByMime[strings.ToLower(doc.MimeType)]
	}
	if ext == "" {
		ext = defaultExt[d.Kind]
	}
	d.Ext = ext

	if filename == "" {
		filename = fmt.Sprintf("%s_%d%s", d.Kind, doc.ID, ext)
	}
	d.Filename = filename

	for _, thumb := range doc.Thumbs {
		if ps, ok := thumb.(*tg.PhotoSize); ok {
			d.ThumbType = ps.Type
		}
	}

	return d
}

// resolveKind applies the classification priority: an explicit video
// attribute wins, then the declared MIME prefix, then the filename extension,
// then plain document.
func resolveKind(hasVideoAttr bool, mimeType, filename string) Kind {
	if hasVideoAttr {
		return KindVideo
	}

	mime := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindPhoto
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	}

	if kind, ok := kindByExt[strings.ToLower(path.Ext(filename))]; ok {
		return kind
	}

	return KindDocument
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int64) {
	var (
		sizeType string
		byteSize int64
	)
	for _, s := range sizes {
		switch ps := s.(type) {
		case *tg.PhotoSize:
			if int64(ps.Size) >= byteSize {
				sizeType = ps.Type
				byteSize = int64(ps.Size)
			}
		case *tg.PhotoSizeProgressive:
			var max int
			for _, n := range ps.Sizes {
				if n > max {
					max = n
				}
			}
			if int64(max) >= byteSize {
				sizeType = ps.Type
				byteSize = int64(max)
			}
		}
	}
	return sizeType, byteSize
}
