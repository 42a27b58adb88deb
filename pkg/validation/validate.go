package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatrelay/pkg/models"
)

// MediaPolicy bounds inline media carried on message frames. The zero policy
// rejects all media; callers set an explicit policy at startup.
type MediaPolicy struct {
	MaxBytes    int64
	AllowedMIME []string
}

var (
	policyMu sync.RWMutex
	policy   MediaPolicy
)

// SetMediaPolicy installs the media policy used by ValidateMessage.
func SetMediaPolicy(p MediaPolicy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	policy = p
}

// Policy returns a copy of the installed media policy.
func Policy() MediaPolicy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	out := MediaPolicy{MaxBytes: policy.MaxBytes}
	out.AllowedMIME = append(out.AllowedMIME, policy.AllowedMIME...)
	return out
}

// ValidateAuth checks an auth frame. Role must be present; userId 0 is the
// anonymous visitor and is valid.
func ValidateAuth(a *models.Auth) error {
	var errs []string
	if a.UserID < 0 {
		errs = append(errs, "userId must be >= 0")
	}
	if strings.TrimSpace(a.Role) == "" {
		errs = append(errs, "role is required")
	}
	if a.UserID == models.AnonymousID && a.Role != models.RoleVisitor {
		errs = append(errs, fmt.Sprintf("userId 0 requires role %q", models.RoleVisitor))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateMessage checks a message frame against the protocol and the media
// policy. Content may be empty when media is attached.
func ValidateMessage(m *models.Message) error {
	var errs []string
	if m.ReceiverID < 0 {
		errs = append(errs, "receiverId must be >= 0")
	}
	if m.Content == "" && m.MediaURL == "" {
		errs = append(errs, "content or mediaUrl is required")
	}
	switch m.MediaType {
	case "", "image", "file":
	default:
		errs = append(errs, fmt.Sprintf("invalid mediaType: %s", m.MediaType))
	}
	if m.MediaURL != "" {
		if err := validateMedia(m.MediaURL, m.MediaType); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateTyping checks a typing frame.
func ValidateTyping(t *models.Typing) error {
	if t.ReceiverID < 0 {
		return errors.New("receiverId must be >= 0")
	}
	return nil
}

// validateMedia enforces the configured size cap and, for inline data URIs,
// the MIME allow-list. File media carries a name rather than content, so only
// the size cap applies.
func validateMedia(mediaURL, mediaType string) error {
	p := Policy()
	if p.MaxBytes > 0 && int64(len(mediaURL)) > p.MaxBytes {
		return fmt.Errorf("media exceeds %d bytes", p.MaxBytes)
	}
	if mediaType != "image" {
		return nil
	}
	if !strings.HasPrefix(mediaURL, "data:") {
		return errors.New("image media must be a data URI")
	}
	mime := DataURIMIME(mediaURL)
	if mime == "" {
		return errors.New("image media missing MIME type")
	}
	if !MIMEAllowed(mime, p.AllowedMIME) {
		return fmt.Errorf("media MIME not allowed: %s", mime)
	}
	return nil
}

// DataURIMIME extracts the MIME type from a data URI, or "" if absent.
func DataURIMIME(uri string) string {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ""
	}
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// MIMEAllowed reports whether mime is on the allow-list. An empty list
// allows nothing.
func MIMEAllowed(mime string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, mime) {
			return true
		}
	}
	return false
}
