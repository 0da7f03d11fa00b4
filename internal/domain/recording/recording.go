// Package recording holds the naming rules for uploaded voice memos.
//
// Uploaded objects are named "{timestamp}_{random8}_{title}.{ext}".
package recording

import (
	"path"
	"strings"
	"time"
)

const (
	DefaultExtension   = "aiff"
	DefaultContentType = "audio/aiff"
	TimestampLayout    = "20060102150405"
)

var contentTypes = map[string]string{
	"aiff": "audio/aiff",
	"aif":  "audio/aiff",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
}

// NormalizeExtension strips a leading dot and lowercases ext, falling back to
// DefaultExtension when it is empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// ContentType returns the MIME type uploads with extension ext are signed for.
func ContentType(ext string) string {
	if ct, ok := contentTypes[NormalizeExtension(ext)]; ok {
		return ct
	}
	return DefaultContentType
}

// ContentTypeOf is ContentType for the extension of an object name.
func ContentTypeOf(name string) string {
	return ContentType(path.Ext(name))
}

func Filename(at time.Time, id, title, ext string) string {
	return at.Format(TimestampLayout) + "_" + id + "_" + title + "." + NormalizeExtension(ext)
}

// Title recovers the title from an object name. Names that do not follow the
// upload convention yield their whole stem.
func Title(name string) string {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))

	parts := strings.SplitN(stem, "_", 3)
	if len(parts) < 3 || parts[2] == "" {
		return stem
	}
	return parts[2]
}
