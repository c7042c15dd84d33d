// Package httpapi is the polling protocol adapter.
//
// The remote client cannot accept inbound connections and cannot hold open
// streaming connections, so the adapter exposes the bridge as plain HTTP
// endpoints the client pulls from:
//
//	POST /v1/announce   client startup or reconnect; clears the bridge
//	GET  /v1/poll       claim the next request, 204 when nothing is queued
//	POST /v1/response   resolve or reject a claimed request
//	GET  /v1/status     queue depth and client connectivity
//	GET  /healthz       aggregated health checks
//
// The adapter carries no request state of its own; it only tracks when the
// client was last seen so a silent client triggers one bridge clear.
package httpapi
