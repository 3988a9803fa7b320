package chat

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ResolveAttachment loads a local file into an Attachment carrying its
// content as a data URL, the way browser clients attach files to a
// message. The media type comes from the file extension when known,
// otherwise from sniffing the content.
func ResolveAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment %s: %w", path, err)
	}
	mt := mediaTypeFor(path, data)
	return Attachment{
		Name:        filepath.Base(path),
		ContentType: mt,
		URL:         "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// mediaTypeFor picks a media type by extension, falling back to content
// sniffing. Parameters like charset do not belong in a data URL prefix.
func mediaTypeFor(path string, data []byte) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		t = http.DetectContentType(data)
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}
