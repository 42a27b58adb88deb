package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatrelay/pkg/models"
)

// Engine merges local optimistic sends, remote messages and presence
// events into per-contact ordered logs, contact
// summaries and unread counters. Contact state is always derivable from the
// log plus presence; it is never a source of truth.
//
// Frame handling arrives on the connection's receive loop while local sends
// come from the caller, so every mutation takes the engine lock.
type Engine struct {
	mu       sync.Mutex
	self     Identity
	logs     map[int64][]models.Message
	contacts map[int64]*models.Contact
	// seen holds every relay-assigned id applied so far. It grows with the
	// conversation history, which the engine keeps in full anyway; both are
	// bounded by the life of the widget session, not by the process.
	seen       map[string]struct{}
	pending    map[string]int64 // local draft id -> contact id, awaiting ack
	active     int64
	hasActive  bool
	peerTyping bool
}

func NewEngine(self Identity) *Engine {
	return &Engine{
		self:     self,
		logs:     make(map[int64][]models.Message),
		contacts: make(map[int64]*models.Contact),
		seen:     make(map[string]struct{}),
		pending:  make(map[string]int64),
	}
}

// SeedContacts installs directory-sourced contact entries (name, avatar,
// role). Message and presence state on existing entries is preserved.
func (e *Engine) SeedContacts(list []models.Contact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range list {
		cur := e.contact(c.ID)
		cur.Name = c.Name
		cur.ImageURL = c.ImageURL
		cur.Role = c.Role
	}
}

// Open makes contactID the active conversation, resets its unread counter to
// exactly 0 and returns a copy of its log.
func (e *Engine) Open(contactID int64) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = contactID
	e.hasActive = true
	e.peerTyping = false
	e.contact(contactID).UnreadCount = 0
	return e.logCopyLocked(contactID)
}

// CloseActive leaves the active conversation.
func (e *Engine) CloseActive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasActive = false
	e.peerTyping = false
}

// Active returns the open conversation's contact id, if any.
func (e *Engine) Active() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.hasActive
}

// SendLocal appends an optimistic entry for a locally-originated message and
// returns the frame to transmit. The entry keeps its local draft id until the
// relay's ack rewrites it. There is no rollback if transmission later fails;
// the entry simply stays unacked.
func (e *Engine) SendLocal(to int64, content, mediaURL, mediaType string) models.Message {
	m := models.Message{
		Type:       models.FrameMessage,
		ID:         uuid.NewString(),
		SenderID:   e.self.ID,
		ReceiverID: to,
		Content:    content,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Read:       false,
		MediaURL:   mediaURL,
		MediaType:  mediaType,
		Role:       e.self.Role,
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs[to] = append(e.logs[to], m)
	e.pending[m.ID] = to
	c := e.contact(to)
	c.LastMessage = summaryText(&m)
	c.LastMessageDate = m.Timestamp
	return m
}

// ApplyAck rewrites the optimistic entry's draft id to the relay-assigned id
// and records the relay timestamp. The relay id also joins the dedup set so
// a future echo of the same message cannot double-append.
func (e *Engine) ApplyAck(a *models.Ack) {
	e.mu.Lock()
	defer e.mu.Unlock()
	to, ok := e.pending[a.LocalID]
	if !ok {
		return
	}
	delete(e.pending, a.LocalID)
	e.seen[a.ID] = struct{}{}
	log := e.logs[to]
	for i := range log {
		if log[i].ID == a.LocalID {
			log[i].ID = a.ID
			if a.Timestamp != "" {
				log[i].Timestamp = a.Timestamp
			}
			break
		}
	}
}

// ApplyMessage merges a remote message. Messages from the open contact land
// read with the unread counter pinned at 0; everything else increments the
// sender's unread counter by exactly 1 and refreshes the summary.
func (e *Engine) ApplyMessage(m *models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.ID != "" {
		if _, dup := e.seen[m.ID]; dup {
			return
		}
		e.seen[m.ID] = struct{}{}
	}
	from := m.SenderID
	entry := *m
	c := e.contact(from)
	if e.hasActive && e.active == from {
		// being read live
		entry.Read = true
		c.UnreadCount = 0
	} else {
		c.UnreadCount++
	}
	e.logs[from] = append(e.logs[from], entry)
	c.LastMessage = summaryText(&entry)
	c.LastMessageDate = entry.Timestamp
}

// ApplyPresence patches the matching contact's online flag. Presence never
// touches logs or unread counts, and unknown ids are ignored (the relay
// broadcasts to everyone; clients filter by known contacts).
func (e *Engine) ApplyPresence(st *models.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contacts[st.UserID]
	if !ok {
		return
	}
	c.Online = st.Status == models.StatusOnline
}

// ApplyTyping surfaces a remote typing flag only for the open conversation;
// typing from anyone else is dropped for rendering purposes.
func (e *Engine) ApplyTyping(t *models.Typing) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasActive || t.SenderID != e.active {
		return
	}
	e.peerTyping = t.IsTyping
}

// PeerTyping reports whether the open conversation's contact is typing.
func (e *Engine) PeerTyping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasActive && e.peerTyping
}

// Log returns a copy of a contact's message log.
func (e *Engine) Log(contactID int64) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logCopyLocked(contactID)
}

// Contacts returns contact summaries sorted by recency (summary convention,
// not an invariant).
func (e *Engine) Contacts() []models.Contact {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Contact, 0, len(e.contacts))
	for _, c := range e.contacts {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti := parseStamp(out[i].LastMessageDate)
		tj := parseStamp(out[j].LastMessageDate)
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.After(tj)
	})
	return out
}

// Unread returns a contact's unread counter.
func (e *Engine) Unread(contactID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.contacts[contactID]; ok {
		return c.UnreadCount
	}
	return 0
}

// UnreadTotal sums unread counters across all contacts for badge rendering.
func (e *Engine) UnreadTotal() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, c := range e.contacts {
		total += c.UnreadCount
	}
	return total
}

// contact returns the tracked entry for id, creating it when first seen.
// Callers hold e.mu.
func (e *Engine) contact(id int64) *models.Contact {
	c, ok := e.contacts[id]
	if !ok {
		c = &models.Contact{ID: id}
		e.contacts[id] = c
	}
	return c
}

func (e *Engine) logCopyLocked(contactID int64) []models.Message {
	log := e.logs[contactID]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

func summaryText(m *models.Message) string {
	if m.Content != "" {
		return m.Content
	}
	switch m.MediaType {
	case "image":
		return "[image]"
	case "file":
		return "[file] " + m.MediaURL
	default:
		return ""
	}
}

func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
