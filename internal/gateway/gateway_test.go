package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/gateway"
	"github.com/deskhub/helpdesk/internal/pubsub"
)

const testSecret = "test-secret"

func newServer(t *testing.T, hub *pubsub.Hub, hooks gateway.Hooks) (*httptest.Server, *gateway.Authenticator) {
	t.Helper()
	auth := gateway.NewAuthenticator(testSecret)
	g := gateway.New(hub, auth, zap.NewNop(), hooks)
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return srv, auth
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial failed: %v (resp=%v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *pubsub.Hub, group string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(group) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("group %q never reached %d subscribers (have %d)",
		group, want, hub.SubscriberCount(group))
}

func TestGateway_DeliversUserAndBroadcastTraffic(t *testing.T) {
	hub := pubsub.NewHub()
	srv, auth := newServer(t, hub, gateway.Hooks{})

	token, err := auth.Issue("u-1", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	conn := dial(t, srv, http.Header{"Authorization": {"Bearer " + token}})

	waitForSubscribers(t, hub, domain.UserGroup("u-1"), 1)
	waitForSubscribers(t, hub, domain.BroadcastGroup, 1)

	ctx := context.Background()
	if err := hub.Publish(ctx, domain.UserGroup("u-1"), domain.Notification{
		Title: "Ticket assigned to you", Level: domain.LevelSuccess,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := hub.Publish(ctx, domain.BroadcastGroup, domain.Notification{
		Title: "New Ticket", Level: domain.LevelInfo,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		var n domain.Notification
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&n); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got[n.Title] = true
	}
	if !got["Ticket assigned to you"] || !got["New Ticket"] {
		t.Fatalf("missing traffic, got %v", got)
	}
}

func TestGateway_OtherUsersTrafficDoesNotLeak(t *testing.T) {
	hub := pubsub.NewHub()
	srv, auth := newServer(t, hub, gateway.Hooks{})

	token, _ := auth.Issue("u-1", time.Minute)
	conn := dial(t, srv, http.Header{"Authorization": {"Bearer " + token}})
	waitForSubscribers(t, hub, domain.UserGroup("u-1"), 1)

	ctx := context.Background()
	_ = hub.Publish(ctx, domain.UserGroup("u-2"), domain.Notification{Title: "private"})
	_ = hub.Publish(ctx, domain.UserGroup("u-1"), domain.Notification{Title: "mine"})

	var n domain.Notification
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&n); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n.Title != "mine" {
		t.Fatalf("received another user's notification: %q", n.Title)
	}
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	hub := pubsub.NewHub()
	srv, _ := newServer(t, hub, gateway.Hooks{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
	if hub.SubscriberCount(domain.BroadcastGroup) != 0 {
		t.Fatal("rejected client must not hold a subscription")
	}
}

func TestGateway_RejectsForgedToken(t *testing.T) {
	hub := pubsub.NewHub()
	srv, _ := newServer(t, hub, gateway.Hooks{})

	forged, err := gateway.NewAuthenticator("other-secret").Issue("u-1", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv),
		http.Header{"Authorization": {"Bearer " + forged}})
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestGateway_AcceptsCookieToken(t *testing.T) {
	hub := pubsub.NewHub()
	srv, auth := newServer(t, hub, gateway.Hooks{})

	token, _ := auth.Issue("u-7", time.Minute)
	dial(t, srv, http.Header{"Cookie": {"auth_token=" + token}})

	waitForSubscribers(t, hub, domain.UserGroup("u-7"), 1)
}

func TestGateway_DisconnectReleasesBothGroups(t *testing.T) {
	hub := pubsub.NewHub()

	var mu sync.Mutex
	connects, disconnects := 0, 0
	srv, auth := newServer(t, hub, gateway.Hooks{
		OnConnect:    func() { mu.Lock(); connects++; mu.Unlock() },
		OnDisconnect: func() { mu.Lock(); disconnects++; mu.Unlock() },
	})

	token, _ := auth.Issue("u-1", time.Minute)
	conn := dial(t, srv, http.Header{"Authorization": {"Bearer " + token}})
	waitForSubscribers(t, hub, domain.UserGroup("u-1"), 1)
	waitForSubscribers(t, hub, domain.BroadcastGroup, 1)

	conn.Close()

	waitForSubscribers(t, hub, domain.UserGroup("u-1"), 0)
	waitForSubscribers(t, hub, domain.BroadcastGroup, 0)

	mu.Lock()
	defer mu.Unlock()
	if connects != 1 || disconnects != 1 {
		t.Fatalf("expected 1 connect / 1 disconnect, got %d/%d", connects, disconnects)
	}
}
