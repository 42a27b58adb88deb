package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/pkg/relay"
	"chatrelay/pkg/validation"
)

func startRelay(t *testing.T) (*relay.Hub, string) {
	t.Helper()
	h := relay.New(relay.Options{SendBuffer: 32})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// waitRegistered blocks until the relay has n participants; clients report
// Ready as soon as the auth frame is written, before the relay registers the
// session, and delivery is at-most-once.
func waitRegistered(t *testing.T, h *relay.Hub, n int) {
	t.Helper()
	waitFor(t, "relay registration", func() bool { return len(h.Online()) == n })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectRequiresIdentity(t *testing.T) {
	c := NewConnManager("ws://unused/ws", Handlers{})
	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectHonorsRoutePolicy(t *testing.T) {
	c := NewConnManager("ws://unused/ws", Handlers{})
	ident := Identity{ID: 1, Role: "talent"}
	c.SetIdentity(&ident)
	c.SetRoutePolicy(func() bool { return false })

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrRouteExcluded)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectDialFailureReturnsToDisconnected(t *testing.T) {
	c := NewConnManager("ws://127.0.0.1:1/ws", Handlers{})
	ident := Identity{ID: 1, Role: "talent"}
	c.SetIdentity(&ident)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := c.Connect(ctx)
	assert.Error(t, err)
	assert.Equal(t, Disconnected, c.State())
}

func TestControllersConverseOverRelay(t *testing.T) {
	h, url := startRelay(t)

	talent := NewController(url, Identity{ID: 1, Role: "talent"}, time.Second)
	employer := NewController(url, Identity{ID: 2, Role: "employer"}, time.Second)

	require.NoError(t, talent.Connect(context.Background()))
	require.NoError(t, employer.Connect(context.Background()))
	assert.Equal(t, Ready, talent.ConnState())
	assert.Equal(t, Ready, employer.ConnState())
	waitRegistered(t, h, 2)

	talent.OpenChat(2)
	employer.OpenChat(1)

	require.NoError(t, talent.SendMessage("are you hiring?"))

	waitFor(t, "employer to receive the message", func() bool {
		return len(employer.Log(1)) == 1
	})
	got := employer.Log(1)[0]
	assert.Equal(t, "are you hiring?", got.Content)
	assert.Equal(t, int64(1), got.SenderID)
	assert.True(t, got.Read, "message for the open conversation lands read")

	// the sender's entry gets its relay id via the ack
	waitFor(t, "ack to rewrite the draft id", func() bool {
		log := talent.Log(2)
		return len(log) == 1 && log[0].ID == got.ID
	})

	require.NoError(t, employer.SendMessage("yes, send a resume"))
	waitFor(t, "talent to receive the reply", func() bool {
		return len(talent.Log(2)) == 2
	})

	talent.Logout()
	assert.Equal(t, Disconnected, talent.ConnState())
}

func TestTypingIndicatorAcrossRelay(t *testing.T) {
	h, url := startRelay(t)

	talent := NewController(url, Identity{ID: 1, Role: "talent"}, 80*time.Millisecond)
	employer := NewController(url, Identity{ID: 2, Role: "employer"}, time.Second)
	require.NoError(t, talent.Connect(context.Background()))
	require.NoError(t, employer.Connect(context.Background()))
	waitRegistered(t, h, 2)

	talent.OpenChat(2)
	employer.OpenChat(1)

	talent.Keystroke()
	waitFor(t, "typing indicator to appear", func() bool { return employer.PeerTyping() })

	// silence: the debounce emits the stop
	waitFor(t, "typing indicator to clear", func() bool { return !employer.PeerTyping() })
}

func TestVisitorConversesOverRelay(t *testing.T) {
	h, url := startRelay(t)
	withMediaPolicy(t, validation.MediaPolicy{MaxBytes: 1 << 20, AllowedMIME: []string{"image/png"}})

	visitor := NewController(url, Visitor(), time.Second)
	support := NewController(url, Identity{ID: 9, Role: "employer"}, time.Second)
	require.NoError(t, visitor.Connect(context.Background()))
	require.NoError(t, support.Connect(context.Background()))
	waitRegistered(t, h, 2)

	visitor.OpenChat(9)
	support.OpenChat(0)

	require.NoError(t, visitor.SendMessage("is this role remote?"))
	waitFor(t, "support to receive the visitor message", func() bool {
		return len(support.Log(0)) == 1
	})
	assert.Equal(t, "visitor", support.Log(0)[0].Role)

	require.NoError(t, support.SendMedia("office.png", []byte{0x89, 'P', 'N', 'G'}, "image/png"))
	waitFor(t, "visitor to receive the image", func() bool {
		return len(visitor.Log(9)) == 2
	})
	assert.Equal(t, "image", visitor.Log(9)[1].MediaType)
}

func TestOnDisconnectFires(t *testing.T) {
	h, url := startRelay(t)

	var mu sync.Mutex
	var dropped bool
	c := NewConnManager(url, Handlers{OnDisconnect: func(error) {
		mu.Lock()
		dropped = true
		mu.Unlock()
	}})
	ident := Identity{ID: 4, Role: "talent"}
	c.SetIdentity(&ident)
	require.NoError(t, c.Connect(context.Background()))
	waitRegistered(t, h, 1)

	// relay-side teardown: the idle sweep closes the session's connection
	if swept := h.SweepIdle(time.Nanosecond); swept != 1 {
		t.Fatalf("SweepIdle() = %d, want 1", swept)
	}
	waitFor(t, "disconnect callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dropped
	})
	assert.Equal(t, Disconnected, c.State())

	// no automatic reconnect: state stays down until an external Connect
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Disconnected, c.State())
}
