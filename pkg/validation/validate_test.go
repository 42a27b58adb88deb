package validation

import (
	"strings"
	"testing"

	"chatrelay/pkg/models"
)

func withPolicy(t *testing.T, p MediaPolicy) {
	t.Helper()
	old := Policy()
	SetMediaPolicy(p)
	t.Cleanup(func() { SetMediaPolicy(old) })
}

func TestValidateAuth(t *testing.T) {
	cases := []struct {
		name    string
		auth    models.Auth
		wantErr string
	}{
		{"talent", models.Auth{Type: "auth", UserID: 12, Role: "talent"}, ""},
		{"visitor", models.Auth{Type: "auth", UserID: 0, Role: "visitor"}, ""},
		{"negative id", models.Auth{Type: "auth", UserID: -4, Role: "talent"}, "userId must be >= 0"},
		{"missing role", models.Auth{Type: "auth", UserID: 3}, "role is required"},
		{"id 0 wrong role", models.Auth{Type: "auth", UserID: 0, Role: "employer"}, `userId 0 requires role "visitor"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAuth(&tc.auth)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	withPolicy(t, MediaPolicy{MaxBytes: 256, AllowedMIME: []string{"image/png", "image/jpeg"}})

	cases := []struct {
		name    string
		msg     models.Message
		wantErr string
	}{
		{"text", models.Message{ReceiverID: 2, Content: "hi"}, ""},
		{"text to visitor", models.Message{ReceiverID: 0, Content: "hi"}, ""},
		{"negative receiver", models.Message{ReceiverID: -1, Content: "hi"}, "receiverId must be >= 0"},
		{"empty", models.Message{ReceiverID: 2}, "content or mediaUrl is required"},
		{"bad media type", models.Message{ReceiverID: 2, Content: "x", MediaType: "video"}, "invalid mediaType"},
		{"png image", models.Message{ReceiverID: 2, MediaURL: "data:image/png;base64,AAAA", MediaType: "image"}, ""},
		{"disallowed mime", models.Message{ReceiverID: 2, MediaURL: "data:image/svg+xml;base64,AAAA", MediaType: "image"}, "media MIME not allowed"},
		{"image without data uri", models.Message{ReceiverID: 2, MediaURL: "https://cdn/x.png", MediaType: "image"}, "image media must be a data URI"},
		{"image without mime", models.Message{ReceiverID: 2, MediaURL: "data:,AAAA", MediaType: "image"}, "image media missing MIME type"},
		{"file by name", models.Message{ReceiverID: 2, MediaURL: "resume.pdf", MediaType: "file"}, ""},
		{"oversized", models.Message{ReceiverID: 2, MediaURL: "data:image/png;base64," + strings.Repeat("A", 300), MediaType: "image"}, "media exceeds 256 bytes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMessage(&tc.msg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestZeroPolicyRejectsAllImages(t *testing.T) {
	withPolicy(t, MediaPolicy{})
	m := models.Message{ReceiverID: 2, MediaURL: "data:image/png;base64,AAAA", MediaType: "image"}
	if err := ValidateMessage(&m); err == nil {
		t.Fatal("empty allow-list accepted an image")
	}
}

func TestValidateTyping(t *testing.T) {
	if err := ValidateTyping(&models.Typing{ReceiverID: 2, IsTyping: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTyping(&models.Typing{ReceiverID: 0}); err != nil {
		t.Fatalf("typing to the visitor id must be valid: %v", err)
	}
	if err := ValidateTyping(&models.Typing{ReceiverID: -2}); err == nil {
		t.Fatal("negative receiver accepted")
	}
}

func TestDataURIMIME(t *testing.T) {
	cases := []struct{ in, want string }{
		{"data:image/png;base64,AAAA", "image/png"},
		{"data:image/jpeg,raw", "image/jpeg"},
		{"data:,AAAA", ""},
		{"data:image/png", ""},
		{"https://example.com/x.png", ""},
	}
	for _, tc := range cases {
		if got := DataURIMIME(tc.in); got != tc.want {
			t.Errorf("DataURIMIME(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMIMEAllowed(t *testing.T) {
	allowed := []string{"image/png", "image/jpeg"}
	if !MIMEAllowed("image/png", allowed) || !MIMEAllowed("IMAGE/PNG", allowed) {
		t.Fatal("allow-list match failed")
	}
	if MIMEAllowed("image/gif", allowed) {
		t.Fatal("off-list mime allowed")
	}
	if MIMEAllowed("image/png", nil) {
		t.Fatal("empty allow-list must allow nothing")
	}
}
