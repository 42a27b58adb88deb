package models

import (
	"encoding/json"
	"fmt"
)

// Frame type discriminators. Every frame on the wire is a JSON object with a
// "type" field holding one of these values.
const (
	FrameAuth    = "auth"
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameStatus  = "status"
	FrameAck     = "ack"
)

// Roles carried on auth/message/typing frames. The relay treats roles as
// opaque strings except for RoleVisitor, which is the role of the anonymous
// participant (id 0).
const (
	RoleVisitor = "visitor"
)

// AnonymousID is the reserved participant id for unauthenticated visitors.
// Anonymous participants send and receive like any other participant.
const AnonymousID int64 = 0

// Auth is the mandatory first frame on every connection.
type Auth struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

// Message is a direct message frame. Clients send their local draft id in ID;
// the relay replaces it with an authoritative id before delivery and reports
// the mapping back to the sender via an Ack.
type Message struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp,omitempty"`
	Read       bool   `json:"read"`
	MediaURL   string `json:"mediaUrl,omitempty"`
	MediaType  string `json:"mediaType,omitempty"` // "image" | "file"
	Role       string `json:"role,omitempty"`
}

// Ack maps a sender's local draft id to the relay-assigned id. Sent only on
// the originating connection.
type Ack struct {
	Type      string `json:"type"`
	LocalID   string `json:"localId"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// Typing is a transient typing-state frame. Never persisted, never acked.
type Typing struct {
	Type       string `json:"type"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
	Role       string `json:"role,omitempty"`
}

// Status announces a participant going online or offline.
type Status struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
	Status string `json:"status"` // "online" | "offline"
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PeekType extracts the frame type without decoding the full frame.
func PeekType(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("invalid frame: %w", err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("frame missing type")
	}
	return head.Type, nil
}

// DecodeFrame decodes a raw frame into its typed representation. Unknown
// types return an error; callers drop the frame and keep the connection.
func DecodeFrame(data []byte) (any, error) {
	t, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case FrameAuth:
		var f Auth
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameMessage:
		var f Message
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameTyping:
		var f Typing
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameStatus:
		var f Status
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameAck:
		var f Ack
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown frame type: %s", t)
	}
}
