package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/events"
)

// sendQueueSize bounds the per-connection backlog before a slow consumer
// is evicted.
const sendQueueSize = 256

// pushConn pairs a socket with its outbound queue. The websocket allows at
// most one concurrent writer, so every frame goes through the connection's
// single write loop; pushers only enqueue.
type pushConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (pc *pushConn) stop() {
	pc.once.Do(func() { close(pc.done) })
}

// PushService fans transaction updates out to connected dashboard sessions
// over WebSocket. Each user can have several connections (multiple tabs);
// a dead or backlogged connection is dropped.
type PushService struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*pushConn // userID -> connections
}

// NewPushService creates an empty push hub.
func NewPushService() *PushService {
	return &PushService{conns: make(map[string]map[*websocket.Conn]*pushConn)}
}

// Register attaches a connection to a user's fan-out set and starts its
// write loop.
func (s *PushService) Register(userID string, conn *websocket.Conn) {
	pc := &pushConn{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.conns[userID] == nil {
		s.conns[userID] = make(map[*websocket.Conn]*pushConn)
	}
	s.conns[userID][conn] = pc
	s.mu.Unlock()

	go s.writeLoop(userID, pc)
	logrus.WithField("user_id", userID).Debug("dashboard session connected")
}

// Unregister detaches a connection, stops its write loop, and closes the
// socket. Safe to call more than once for the same connection.
func (s *PushService) Unregister(userID string, conn *websocket.Conn) {
	s.mu.Lock()
	var pc *pushConn
	if set, ok := s.conns[userID]; ok {
		if pc = set[conn]; pc != nil {
			delete(set, conn)
			if len(set) == 0 {
				delete(s.conns, userID)
			}
		}
	}
	s.mu.Unlock()

	if pc != nil {
		pc.stop()
	}
	_ = conn.Close()
}

// writeLoop drains the connection's queue. It is the only goroutine that
// ever calls WriteMessage on this socket.
func (s *PushService) writeLoop(userID string, pc *pushConn) {
	for {
		select {
		case payload := <-pc.send:
			if err := pc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Unregister(userID, pc.conn)
				return
			}
		case <-pc.done:
			return
		}
	}
}

// PushTransaction delivers a transaction event to all of the user's
// connections. A connection whose queue is full gets evicted instead of
// blocking the caller.
func (s *PushService) PushTransaction(userID string, event events.TransactionEvent) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": "transaction",
		"data": event,
	})
	if err != nil {
		logrus.WithError(err).Error("marshal push payload")
		return
	}

	s.mu.RLock()
	set := s.conns[userID]
	targets := make([]*pushConn, 0, len(set))
	for _, pc := range set {
		targets = append(targets, pc)
	}
	s.mu.RUnlock()

	for _, pc := range targets {
		select {
		case pc.send <- payload:
		default:
			logrus.WithField("user_id", userID).Warn("dashboard session backlogged, dropping connection")
			s.Unregister(userID, pc.conn)
		}
	}
}

// ConnectionCount reports the number of live connections, for stats.
func (s *PushService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, set := range s.conns {
		total += len(set)
	}
	return total
}
