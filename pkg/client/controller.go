package client

import (
	"context"
	"sync"
	"time"

	"chatrelay/pkg/models"
)

// ChatSessionState is the widget-facing view of the chat surface. One
// controller owns it; the UI layer reads snapshots and mutates only through
// OpenChat/CloseChat/ToggleMinimize, never as ambient global state.
type ChatSessionState struct {
	IsOpen          bool
	IsMinimized     bool
	UnreadCount     int
	ActiveContactID int64
	HasActive       bool
}

// Controller wires the connection manager, the conversation engine and the
// typing coordinator together behind the control surface the host embeds.
type Controller struct {
	mu     sync.Mutex
	isOpen bool
	isMin  bool

	ident  Identity
	engine *Engine
	conn   *ConnManager
	typing *TypingCoordinator
}

// NewController builds the client engine for one participant. typingTimeout
// <= 0 selects the default debounce window.
func NewController(wsURL string, ident Identity, typingTimeout time.Duration) *Controller {
	c := &Controller{ident: ident, engine: NewEngine(ident)}
	c.conn = NewConnManager(wsURL, Handlers{
		OnMessage: c.engine.ApplyMessage,
		OnAck:     c.engine.ApplyAck,
		OnTyping:  c.engine.ApplyTyping,
		OnStatus:  c.engine.ApplyPresence,
	})
	c.conn.SetIdentity(&ident)
	c.typing = NewTypingCoordinator(typingTimeout, c.emitTyping)
	return c
}

// Connect dials the relay; driven by host lifecycle events (navigation, auth
// change), never retried internally.
func (c *Controller) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// SetRoutePolicy forwards the host's route check to the connection manager.
func (c *Controller) SetRoutePolicy(f func() bool) {
	c.conn.SetRoutePolicy(f)
}

// Logout clears the participant context and closes any live connection.
func (c *Controller) Logout() {
	c.conn.SetIdentity(nil)
}

// ConnState exposes the connection lifecycle state.
func (c *Controller) ConnState() State {
	return c.conn.State()
}

// OpenChat opens the widget; with a contact id it also selects that
// conversation and resets its unread counter.
func (c *Controller) OpenChat(contactID ...int64) {
	c.mu.Lock()
	c.isOpen = true
	c.isMin = false
	c.mu.Unlock()
	if len(contactID) > 0 {
		c.engine.Open(contactID[0])
	}
}

// CloseChat closes the widget and leaves the active conversation. In-flight
// sends are not cancelled; only the typing timer is.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	c.isOpen = false
	c.mu.Unlock()
	c.typing.Stop()
	c.engine.CloseActive()
}

// ToggleMinimize flips the minimized flag of an open widget.
func (c *Controller) ToggleMinimize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		c.isMin = !c.isMin
	}
}

// UnreadCount is the badge value: unread across all contacts.
func (c *Controller) UnreadCount() int {
	return c.engine.UnreadTotal()
}

// State returns a snapshot for rendering.
func (c *Controller) State() ChatSessionState {
	c.mu.Lock()
	isOpen, isMin := c.isOpen, c.isMin
	c.mu.Unlock()
	active, hasActive := c.engine.Active()
	return ChatSessionState{
		IsOpen:          isOpen,
		IsMinimized:     isMin,
		UnreadCount:     c.engine.UnreadTotal(),
		ActiveContactID: active,
		HasActive:       hasActive,
	}
}

// SendMessage sends text to the active conversation: optimistic append,
// typing-stop, then transmit. The optimistic entry stays even when transmit
// fails (no rollback path; the entry remains unacked).
func (c *Controller) SendMessage(content string) error {
	to, ok := c.engine.Active()
	if !ok {
		return ErrNotReady
	}
	m := c.engine.SendLocal(to, content, "", "")
	c.typing.MessageSent()
	return c.conn.Send(&m)
}

// SendMedia encodes a locally-selected file per the media policy and sends
// it to the active conversation.
func (c *Controller) SendMedia(name string, data []byte, mime string) error {
	to, ok := c.engine.Active()
	if !ok {
		return ErrNotReady
	}
	mediaURL, mediaType, err := EncodeMedia(name, data, mime)
	if err != nil {
		return err
	}
	m := c.engine.SendLocal(to, "", mediaURL, mediaType)
	c.typing.MessageSent()
	return c.conn.Send(&m)
}

// Keystroke feeds the typing debounce for the active conversation.
func (c *Controller) Keystroke() {
	if _, ok := c.engine.Active(); !ok {
		return
	}
	c.typing.Keystroke()
}

// Contacts, Log and PeerTyping expose engine snapshots for rendering.
func (c *Controller) Contacts() []models.Contact      { return c.engine.Contacts() }
func (c *Controller) Log(id int64) []models.Message   { return c.engine.Log(id) }
func (c *Controller) PeerTyping() bool                { return c.engine.PeerTyping() }
func (c *Controller) SeedContacts(l []models.Contact) { c.engine.SeedContacts(l) }

// emitTyping sends a typing frame for the active conversation; emitted
// events go best-effort over the live connection.
func (c *Controller) emitTyping(isTyping bool) {
	to, ok := c.engine.Active()
	if !ok {
		return
	}
	t := models.Typing{
		Type:       models.FrameTyping,
		SenderID:   c.ident.ID,
		ReceiverID: to,
		IsTyping:   isTyping,
		Role:       c.ident.Role,
	}
	_ = c.conn.Send(&t)
}
