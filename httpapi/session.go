package httpapi

import (
	"sync"
	"time"
)

// clientSession is the minimal connection bookkeeping the adapter keeps: who
// the client is and when it last called in. Disconnect detection feeds queue
// cleanup and nothing else.
type clientSession struct {
	mu        sync.Mutex
	name      string
	version   string
	connected bool
	lastSeen  time.Time
}

func (s *clientSession) announce(name, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.version = version
	s.connected = true
	s.lastSeen = time.Now()
}

func (s *clientSession) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.lastSeen = time.Now()
}

// LastSeen reports when the client last called in; the second return value
// is false before the first contact.
func (s *clientSession) LastSeen() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, !s.lastSeen.IsZero()
}

func (s *clientSession) snapshot() (name string, connected bool, lastSeen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.connected, s.lastSeen
}

// expireIfIdle flips the session to disconnected when the client has been
// silent past threshold. Returns true only on the connected-to-disconnected
// transition, so the caller clears the bridge exactly once per outage.
func (s *clientSession) expireIfIdle(threshold time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.lastSeen.IsZero() {
		return false
	}
	if time.Since(s.lastSeen) <= threshold {
		return false
	}
	s.connected = false
	return true
}
