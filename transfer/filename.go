package transfer

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

var (
	videoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm", ".flv", ".wmv"}
	audioExtensions = []string{".mp3", ".m4a", ".flac", ".wav", ".aac"}
	photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

// ResolveName picks the output filename. A caption wins over declared names
// and is given an extension matching the media kind when it lacks one;
// declared names are used as they are.
func ResolveName(req Request) string {
	if caption := strings.TrimSpace(req.Caption); caption != "" {
		return repairExtension(caption, req.Kind)
	}
	if req.DeclaredName != "" && (req.Kind == KindDocument || req.Kind == KindVideo) {
		return req.DeclaredName
	}
	return "file_" + req.ID
}

func repairExtension(name string, kind MediaKind) string {
	var allowed []string
	var fallback string
	switch kind {
	case KindVideo:
		allowed, fallback = videoExtensions, ".mkv"
	case KindAudio:
		allowed, fallback = audioExtensions, ".mp3"
	case KindPhoto:
		allowed, fallback = photoExtensions, ".jpg"
	default:
		return name
	}

	if lo.Contains(allowed, strings.ToLower(filepath.Ext(name))) {
		return name
	}
	return name + fallback
}
