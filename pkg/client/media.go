package client

import (
	"encoding/base64"
	"fmt"
	"strings"

	"chatrelay/pkg/validation"
)

// EncodeMedia turns a locally-selected file into the message media fields.
// Images are inlined as a data URI; any other file is represented by name
// only (object storage is out of scope). The configured size cap and MIME
// allow-list apply before anything is built.
func EncodeMedia(name string, data []byte, mime string) (mediaURL, mediaType string, err error) {
	p := validation.Policy()
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", "", fmt.Errorf("media %q exceeds %d bytes", name, p.MaxBytes)
	}
	if strings.HasPrefix(mime, "image/") {
		if !validation.MIMEAllowed(mime, p.AllowedMIME) {
			return "", "", fmt.Errorf("media MIME not allowed: %s", mime)
		}
		uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		if p.MaxBytes > 0 && int64(len(uri)) > p.MaxBytes {
			return "", "", fmt.Errorf("media %q exceeds %d bytes after encoding", name, p.MaxBytes)
		}
		return uri, "image", nil
	}
	return name, "file", nil
}
