package contracts

import (
	"encoding/json"
	"time"
)

// PendingClaim is a claimed request as handed to the remote client by a poll.
// The payload is passed through unmodified from the submitting caller.
type PendingClaim struct {
	ID       string          `json:"id"`
	Endpoint string          `json:"endpoint"`
	Payload  json.RawMessage `json:"payload"`
}

// ResponseSubmission is posted by the remote client when it has finished
// processing a claimed request. Exactly one of Result or Error is meaningful;
// a non-empty Error rejects the request.
type ResponseSubmission struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// AnnounceRequest is sent by the remote client on startup or reconnect.
type AnnounceRequest struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// AnnounceReply carries the tuning constants the remote client must honor:
// poll at most PollIntervalMs apart, let a claim go stale after
// StaleDispatchWindowMs of silence, and treat OverallTimeoutMs of silence as
// a dropped request.
type AnnounceReply struct {
	PollIntervalMs        int64 `json:"pollIntervalMs"`
	StaleDispatchWindowMs int64 `json:"staleDispatchWindowMs"`
	OverallTimeoutMs      int64 `json:"overallTimeoutMs"`
}

// StatusReply reports bridge depth and client connectivity for health and
// status surfaces.
type StatusReply struct {
	Pending         int       `json:"pending"`
	Dispatched      int       `json:"dispatched"`
	ClientConnected bool      `json:"clientConnected"`
	ClientName      string    `json:"clientName,omitempty"`
	LastSeen        time.Time `json:"lastSeen"`
}
