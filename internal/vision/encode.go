// Package vision turns meter photographs into raw model replies: it encodes
// image files and sends them to the hosted vision model with a fixed
// extraction instruction.
package vision

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// mimeByExtension maps lowercased file extensions to MIME types. There is no
// content sniffing; unknown extensions fall back to image/jpeg.
var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".webp": "image/webp",
}

// EncodeImage produces the base64 payload, MIME type, and byte size for an
// image file. Pure transform; the caller owns the file's lifecycle.
func EncodeImage(path string, data []byte) (payload, mimeType string, size int) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := mimeByExtension[ext]
	if !ok {
		mimeType = "image/jpeg"
	}
	return base64.StdEncoding.EncodeToString(data), mimeType, len(data)
}
