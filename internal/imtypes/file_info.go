// internal/imtypes/file_info.go
package imtypes

import "strings"

// FileInfo describes a stored upload and the URL it is served from.
type FileInfo struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

// IsImage reports whether the upload carries an image MIME type.
func (f *FileInfo) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}
