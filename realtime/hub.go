package realtime

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// sessionBuffer bounds the per-connection outbound queue. Delivery is
// best-effort: a session that cannot keep up has events dropped, and the
// client resynchronizes over REST on its next fetch.
const sessionBuffer = 64

// Session is one authenticated live connection. It belongs to the Hub that
// created it.
type Session struct {
	subject string
	send    chan []byte
	once    sync.Once
}

// Subject returns the authenticated user behind the connection.
func (s *Session) Subject() string { return s.subject }

// Outbound returns the channel the transport write loop drains.
func (s *Session) Outbound() <-chan []byte { return s.send }

func (s *Session) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub is the connection registry and event broadcaster: it maps live
// connections to their subjects and to the boards they observe, and fans
// events out to each board's interest group. A single Hub instance is
// constructed at startup and handed to every component that needs it.
type Hub struct {
	logger *log.Logger

	mu       sync.Mutex
	groups   map[string]map[*Session]struct{}
	observed map[*Session]map[string]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:   logger,
		groups:   map[string]map[*Session]struct{}{},
		observed: map[*Session]map[string]struct{}{},
	}
}

// Attach admits an authenticated connection. The caller must have verified
// the subject's credential; no session exists for unauthenticated
// connections.
func (h *Hub) Attach(subject string) *Session {
	s := &Session{subject: subject, send: make(chan []byte, sessionBuffer)}
	h.mu.Lock()
	h.observed[s] = map[string]struct{}{}
	h.mu.Unlock()
	return s
}

// Join adds the session to each named board's interest group. Join is
// advisory routing, not a trust boundary: authorization happened when the
// client fetched the board over REST.
func (h *Hub) Join(s *Session, boardIDs []string) {
	if len(boardIDs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	boards, ok := h.observed[s]
	if !ok {
		return
	}
	for _, id := range boardIDs {
		if id == "" {
			continue
		}
		g, ok := h.groups[id]
		if !ok {
			g = map[*Session]struct{}{}
			h.groups[id] = g
		}
		g[s] = struct{}{}
		boards[id] = struct{}{}
	}
}

// Leave removes the session from each named group. Empty groups are
// discarded.
func (h *Hub) Leave(s *Session, boardIDs []string) {
	if len(boardIDs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	boards, ok := h.observed[s]
	if !ok {
		return
	}
	for _, id := range boardIDs {
		h.dropFromGroup(s, id)
		delete(boards, id)
	}
}

// Detach leaves every observed board and removes the subject mapping. It is
// the transport's cleanup hook on connection close and is safe to call more
// than once.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	boards, ok := h.observed[s]
	if ok {
		for id := range boards {
			h.dropFromGroup(s, id)
		}
		delete(h.observed, s)
	}
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

func (h *Hub) dropFromGroup(s *Session, boardID string) {
	g, ok := h.groups[boardID]
	if !ok {
		return
	}
	delete(g, s)
	if len(g) == 0 {
		delete(h.groups, boardID)
	}
}

// Publish stamps the event with the send-time timestamp and delivers it to
// the board's interest group. It implements domain.Publisher for
// single-process deployments; multi-replica deployments publish through the
// Bridge instead.
func (h *Hub) Publish(boardID string, kind domain.EventKind, data any) {
	env, err := NewEnvelope(boardID, kind, data)
	if err != nil {
		h.logger.WithFields(log.Fields{"board": boardID, "event": kind}).Errorf("encode event: %v", err)
		return
	}
	h.Deliver(env)
}

// Deliver fans a ready envelope out to the board's local interest group.
// Sessions whose buffers are full are skipped.
func (h *Hub) Deliver(env domain.Envelope) {
	msg, err := sonic.Marshal(env)
	if err != nil {
		h.logger.WithFields(log.Fields{"board": env.BoardID, "event": env.Event}).Errorf("encode envelope: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.groups[env.BoardID] {
		select {
		case s.send <- msg:
		default:
			h.logger.WithFields(log.Fields{"board": env.BoardID, "subject": s.subject}).Warn("session buffer full, dropping event")
		}
	}
}

// NewEnvelope wraps an event payload for the wire, stamping the server-side
// send timestamp.
func NewEnvelope(boardID string, kind domain.EventKind, data any) (domain.Envelope, error) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.Envelope{
		BoardID:   boardID,
		Event:     kind,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
