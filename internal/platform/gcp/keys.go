package gcp

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey builds a fresh content-addressed storage key. UUIDv7 keys are
// globally unique and time-sortable, so successive generations of the same
// asset never collide and list in creation order.
func ObjectKey(videoID uint64, kind string, ext string) string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4.
		id = uuid.New()
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	return fmt.Sprintf("videos/%d/%s/%s.%s", videoID, kind, id.String(), ext)
}

// MimeForKey inverts ExtForMime for downloads addressed by storage key.
func MimeForKey(key string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(key), ".")) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "wav":
		return "audio/wav"
	case "mp4":
		return "video/mp4"
	case "txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// ExtForMime maps the content types produced by the generation services to
// storage key extensions.
func ExtForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "video/mp4":
		return "mp4"
	case "text/plain":
		return "txt"
	default:
		return "bin"
	}
}
