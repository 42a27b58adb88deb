package client

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/pkg/validation"
)

func withMediaPolicy(t *testing.T, p validation.MediaPolicy) {
	t.Helper()
	old := validation.Policy()
	validation.SetMediaPolicy(p)
	t.Cleanup(func() { validation.SetMediaPolicy(old) })
}

func TestEncodeMediaImage(t *testing.T) {
	withMediaPolicy(t, validation.MediaPolicy{MaxBytes: 1 << 20, AllowedMIME: []string{"image/png"}})

	payload := []byte{0x89, 'P', 'N', 'G'}
	url, typ, err := EncodeMedia("avatar.png", payload, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image", typ)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	// the produced URI passes relay-side validation untouched
	assert.Equal(t, "image/png", validation.DataURIMIME(url))
}

func TestEncodeMediaFileByName(t *testing.T) {
	withMediaPolicy(t, validation.MediaPolicy{MaxBytes: 1 << 20, AllowedMIME: []string{"image/png"}})

	url, typ, err := EncodeMedia("resume.pdf", make([]byte, 2048), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "file", typ)
	assert.Equal(t, "resume.pdf", url, "files carry the name, never the content")
}

func TestEncodeMediaRejectsOversize(t *testing.T) {
	withMediaPolicy(t, validation.MediaPolicy{MaxBytes: 100, AllowedMIME: []string{"image/png"}})

	_, _, err := EncodeMedia("big.png", make([]byte, 200), "image/png")
	assert.Error(t, err)

	// fits raw but not after base64 expansion
	_, _, err = EncodeMedia("borderline.png", make([]byte, 90), "image/png")
	assert.Error(t, err)
}

func TestEncodeMediaRejectsDisallowedMIME(t *testing.T) {
	withMediaPolicy(t, validation.MediaPolicy{MaxBytes: 1 << 20, AllowedMIME: []string{"image/png"}})

	_, _, err := EncodeMedia("art.tiff", []byte{1}, "image/tiff")
	assert.Error(t, err)
}
