// Package gateway attaches authenticated WebSocket clients to the
// notification groups they are entitled to read: their own per-user group
// plus the shared broadcast group.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hooks carries the connection-gauge callbacks injected by main.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
}

// Gateway authenticates upgrade requests and pumps group traffic onto the
// socket. One goroutine pair per connection; no state is shared between
// connections beyond the subscriber.
type Gateway struct {
	subs   pubsub.Subscriber
	auth   *Authenticator
	logger *zap.Logger
	hooks  Hooks

	upgrader websocket.Upgrader
}

func New(subs pubsub.Subscriber, auth *Authenticator, logger *zap.Logger, hooks Hooks) *Gateway {
	if hooks.OnConnect == nil {
		hooks.OnConnect = func() {}
	}
	if hooks.OnDisconnect == nil {
		hooks.OnDisconnect = func() {}
	}
	return &Gateway{
		subs:   subs,
		auth:   auth,
		logger: logger,
		hooks:  hooks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP handles one WebSocket session. Authentication happens before
// the upgrade: an unauthenticated caller gets a plain 401 and never
// consumes a subscription.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Both memberships must exist before any traffic flows, otherwise a
	// notification published between upgrade and subscribe would be lost
	// for this client.
	userSub, err := g.subs.Subscribe(r.Context(), domain.UserGroup(userID))
	if err != nil {
		g.logger.Error("subscribe failed", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	broadcastSub, err := g.subs.Subscribe(r.Context(), domain.BroadcastGroup)
	if err != nil {
		_ = userSub.Close()
		g.logger.Error("subscribe failed", zap.String("group", domain.BroadcastGroup), zap.Error(err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = userSub.Close()
		_ = broadcastSub.Close()
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	g.hooks.OnConnect()
	g.logger.Info("client attached", zap.String("user_id", userID))

	go g.serve(conn, userID, userSub, broadcastSub)
}

// serve owns the connection until it dies. Teardown always closes both
// subscriptions regardless of which side or which group failed first.
func (g *Gateway) serve(conn *websocket.Conn, userID string, subs ...pubsub.Subscription) {
	defer func() {
		for _, s := range subs {
			_ = s.Close()
		}
		_ = conn.Close()
		g.hooks.OnDisconnect()
		g.logger.Info("client detached", zap.String("user_id", userID))
	}()

	// Reader pump: the client never sends application data, but reading
	// is what surfaces close frames and feeds the pong handler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n, ok := <-subs[0].C():
			if !ok || !g.write(conn, n) {
				return
			}
		case n, ok := <-subs[1].C():
			if !ok || !g.write(conn, n) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, n domain.Notification) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(n); err != nil {
		g.logger.Debug("websocket write failed", zap.Error(err))
		return false
	}
	return true
}
