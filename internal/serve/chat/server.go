// Package chat serves conversations to browser clients over WebSocket.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/catalog"
	convo "github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/llm"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	gcInterval         = 5 * time.Minute
	maxEventBuf        = 4096
)

// Config configures a SessionManager.
type Config struct {
	// Token, if set, is required as a bearer token on every route.
	Token     string
	Transport llm.Transport
	Catalog   *catalog.Catalog
	Defaults  convo.Settings
	Logger    zerolog.Logger
}

// RemoteSession is one conversation owned by the server. It outlives its
// WebSocket connection so a client can re-attach.
type RemoteSession struct {
	ID           string
	EventBuf     []WireEvent
	NextSeq      int64
	LastActiveAt time.Time

	orch    *convo.Orchestrator
	unwatch func()

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// SessionManager manages active remote chat sessions.
type SessionManager struct {
	sessions map[string]*RemoteSession
	mu       sync.RWMutex
	cfg      Config
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager creates a session manager using the supplied configuration.
func NewSessionManager(cfg Config) *SessionManager {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		sessions: make(map[string]*RemoteSession),
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "chat-server").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HTTPHandler returns an http.Handler for the chat endpoints.
func (m *SessionManager) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/models", m.auth(m.handleModels))
	mux.HandleFunc("/chat/sessions", m.auth(m.handleListSessions))
	mux.HandleFunc("/chat/sessions/new", m.auth(m.handleNewSession))
	mux.HandleFunc("/chat/sessions/", m.auth(m.handleResumeSession))
	return mux
}

// Close cancels every in-flight send and closes all connections.
func (m *SessionManager) Close() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*RemoteSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.orch.Cancel()
		sess.mu.Lock()
		if sess.conn != nil {
			_ = sess.conn.Close()
		}
		sess.mu.Unlock()
	}
}

// StartGC starts background GC for inactive sessions.
func (m *SessionManager) StartGC(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.gcSessions(now)
		case <-ctx.Done():
			return
		}
	}
}

// gcSessions drops sessions idle since before now-sessionIdleTimeout that
// have neither a stream nor a connection.
func (m *SessionManager) gcSessions(now time.Time) int {
	cutoff := now.Add(-sessionIdleTimeout)
	var stale []*RemoteSession

	m.mu.Lock()
	for id, sess := range m.sessions {
		sess.mu.Lock()
		inactive := sess.LastActiveAt.Before(cutoff)
		connected := sess.conn != nil
		sess.mu.Unlock()
		if inactive && !connected && !sess.orch.Store().IsStreaming() {
			delete(m.sessions, id)
			stale = append(stale, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range stale {
		sess.unwatch()
		m.log.Debug().Str("session_id", sess.ID).Msg("session expired")
	}
	return len(stale)
}

func (m *SessionManager) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  m.cfg.Catalog.Models(),
		"default": m.cfg.Defaults.Model,
	})
}

func (m *SessionManager) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]map[string]any, 0, len(m.sessions))
	for _, sess := range m.sessions {
		store := sess.orch.Store()
		item := map[string]any{
			"id":        sess.ID,
			"model":     store.Settings().Model,
			"messages":  len(store.Messages()),
			"streaming": store.IsStreaming(),
		}
		sess.mu.Lock()
		item["connected"] = sess.conn != nil
		item["last_active"] = sess.LastActiveAt.Format(time.RFC3339Nano)
		sess.mu.Unlock()
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

func (m *SessionManager) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := m.upgrade(w, r)
	if err != nil {
		return
	}

	sess := m.newSession()
	m.log.Info().Str("session_id", sess.ID).Str("remote", r.RemoteAddr).Msg("session started")
	m.attach(sess, conn, 0)
	m.runSessionLoop(sess, conn)
}

func (m *SessionManager) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/chat/sessions/")
	id = strings.Trim(id, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	m.mu.RLock()
	sess := m.sessions[id]
	m.mu.RUnlock()
	if sess == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	conn, err := m.upgrade(w, r)
	if err != nil {
		return
	}

	since := int64(0)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		if parsed, err := strconv.ParseInt(sinceStr, 10, 64); err == nil {
			since = parsed
		}
	}

	m.attach(sess, conn, since)
	m.runSessionLoop(sess, conn)
}

func (m *SessionManager) runSessionLoop(sess *RemoteSession, conn *websocket.Conn) {
	readCh := make(chan ClientEvent)
	go func() {
		defer close(readCh)
		for {
			var ev ClientEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			readCh <- ev
		}
	}()

	for ev := range readCh {
		sess.mu.Lock()
		sess.LastActiveAt = time.Now()
		sess.mu.Unlock()

		// Events are applied in the order the client sent them. A message
		// is registered before the next event is read, so a following
		// interrupt or reset sees it.
		switch ev.Type {
		case "message":
			m.startSend(sess, ev.Text)
		case "interrupt":
			sess.orch.Cancel()
		case "reset":
			sess.orch.Clear()
		case "settings":
			if ev.Settings == nil {
				m.writeError(sess, "settings event without settings")
				continue
			}
			sess.orch.SetSettings(*ev.Settings)
		default:
			m.writeError(sess, "unknown event type: "+ev.Type)
		}
	}

	m.detachConn(sess, conn)
}

func (m *SessionManager) startSend(sess *RemoteSession, text string) {
	result, err := sess.orch.Start(m.ctx, text)
	if err != nil {
		// Rejected before any store change, so the client hears about it here.
		m.writeError(sess, err.Error())
		return
	}
	go func() {
		if err := <-result; err != nil {
			m.log.Debug().Str("session_id", sess.ID).Err(err).Msg("send failed")
		}
	}()
}

func (m *SessionManager) newSession() *RemoteSession {
	sess := &RemoteSession{
		ID:           uuid.NewString(),
		NextSeq:      1,
		LastActiveAt: time.Now(),
	}
	log := m.cfg.Logger.With().Str("session_id", sess.ID).Logger()
	store := convo.NewStore(m.cfg.Defaults)
	sess.orch = convo.NewOrchestrator(store, m.cfg.Transport, log)
	sess.unwatch = store.Watch(func(c convo.Change) {
		ev, ok := ToWireEvent(c)
		if !ok {
			return
		}
		if c.Type == convo.ChangeCleared {
			sess.mu.Lock()
			sess.EventBuf = nil
			sess.mu.Unlock()
		}
		m.writeStreamEvent(sess, ev)
	})

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// attach makes conn the session's connection and sends session_ready on it.
// The ready event's history and seq come from the same point in the change
// sequence, and nothing else is written to conn before it.
func (m *SessionManager) attach(sess *RemoteSession, conn *websocket.Conn, since int64) {
	var old *websocket.Conn
	sess.orch.Store().Snapshot(func(snap convo.Snapshot) {
		ready := WireEvent{
			Type:      EventSessionReady,
			SessionID: sess.ID,
			History:   snap.Messages,
			Settings:  &snap.Settings,
			Streaming: &snap.Streaming,
		}

		sess.writeMu.Lock()
		defer sess.writeMu.Unlock()

		var catchup *WireEvent
		sess.mu.Lock()
		old = sess.conn
		sess.conn = conn
		sess.LastActiveAt = time.Now()
		ready.Seq = sess.NextSeq - 1
		if since > 0 {
			var events []WireEvent
			for _, evt := range sess.EventBuf {
				if evt.Seq > since {
					events = append(events, evt)
				}
			}
			if len(events) > 0 {
				catchup = &WireEvent{Type: EventCatchup, Events: events}
			}
		}
		sess.mu.Unlock()

		_ = writeEvent(conn, ready)
		if catchup != nil {
			_ = writeEvent(conn, *catchup)
		}
	})
	if old != nil && old != conn {
		_ = old.Close()
	}
}

// detachConn forgets conn unless a newer connection has replaced it.
func (m *SessionManager) detachConn(sess *RemoteSession, conn *websocket.Conn) {
	sess.mu.Lock()
	if sess.conn == conn {
		sess.conn = nil
		sess.LastActiveAt = time.Now()
	}
	sess.mu.Unlock()
	_ = conn.Close()
}

func (m *SessionManager) writeStreamEvent(sess *RemoteSession, ev WireEvent) {
	sess.mu.Lock()
	ev.Seq = sess.NextSeq
	sess.NextSeq++
	sess.EventBuf = append(sess.EventBuf, ev)
	if len(sess.EventBuf) > maxEventBuf {
		sess.EventBuf = sess.EventBuf[len(sess.EventBuf)-maxEventBuf:]
	}
	sess.mu.Unlock()

	_ = m.write(sess, ev)
}

func (m *SessionManager) writeError(sess *RemoteSession, message string) {
	m.writeStreamEvent(sess, WireEvent{Type: EventError, Error: message})
}

// write sends ev on the session's current connection, if any.
func (m *SessionManager) write(sess *RemoteSession, ev WireEvent) error {
	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	if conn == nil {
		return nil
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return writeEvent(conn, ev)
}

func (m *SessionManager) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *SessionManager) authorized(r *http.Request) bool {
	token := strings.TrimSpace(m.cfg.Token)
	if token == "" {
		return true
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == token
}

func (m *SessionManager) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return upgrader.Upgrade(w, r, nil)
}

func writeEvent(conn *websocket.Conn, e WireEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
