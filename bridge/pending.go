package bridge

import (
	"encoding/json"
	"time"
)

// pendingRequest is one outstanding remote operation. Entries live in the
// table from Submit until they are resolved, rejected, expired, or cleared;
// an entry is never touched again after removal.
type pendingRequest struct {
	id           string
	endpoint     string
	payload      json.RawMessage
	createdAt    time.Time
	dispatched   bool
	dispatchedAt time.Time
	future       *Future
	expiry       *time.Timer
}

// pendingTable is the authoritative store of outstanding requests. It is not
// safe for concurrent use on its own; the owning Bridge serializes access.
type pendingTable struct {
	entries map[string]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRequest)}
}

func (t *pendingTable) insert(req *pendingRequest) {
	t.entries[req.id] = req
}

// remove takes an entry out of the table, returning nil if the id is unknown.
func (t *pendingTable) remove(id string) *pendingRequest {
	req, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return req
}

// claimOldest scans the table once. Dispatched entries whose claim has gone
// silent past staleWindow revert to undispatched in place, even when they are
// not the entry ultimately chosen. Among undispatched entries the one with
// the smallest createdAt wins; ties go to the first encountered, which makes
// the result deterministic for a single scan but otherwise unspecified. The
// winner is marked dispatched before it is returned.
func (t *pendingTable) claimOldest(now time.Time, staleWindow time.Duration) *pendingRequest {
	var oldest *pendingRequest
	for _, req := range t.entries {
		if req.dispatched && now.Sub(req.dispatchedAt) > staleWindow {
			req.dispatched = false
			req.dispatchedAt = time.Time{}
		}
		if req.dispatched {
			continue
		}
		if oldest == nil || req.createdAt.Before(oldest.createdAt) {
			oldest = req
		}
	}
	if oldest == nil {
		return nil
	}
	oldest.dispatched = true
	oldest.dispatchedAt = now
	return oldest
}

// removeExpired takes out every entry older than overallTimeout and returns
// the removed entries for settlement by the caller.
func (t *pendingTable) removeExpired(now time.Time, overallTimeout time.Duration) []*pendingRequest {
	var expired []*pendingRequest
	for id, req := range t.entries {
		if now.Sub(req.createdAt) > overallTimeout {
			delete(t.entries, id)
			expired = append(expired, req)
		}
	}
	return expired
}

// drain empties the table and returns every entry that was in it.
func (t *pendingTable) drain() []*pendingRequest {
	drained := make([]*pendingRequest, 0, len(t.entries))
	for _, req := range t.entries {
		drained = append(drained, req)
	}
	t.entries = make(map[string]*pendingRequest)
	return drained
}

func (t *pendingTable) size() int {
	return len(t.entries)
}

func (t *pendingTable) dispatchedCount() int {
	n := 0
	for _, req := range t.entries {
		if req.dispatched {
			n++
		}
	}
	return n
}
