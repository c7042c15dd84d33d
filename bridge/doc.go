// Package bridge converts asynchronous remote-operation calls into a
// pull-based polling protocol.
//
// A submitter calls Submit and receives a Future. The remote client, which
// can only make outbound HTTP calls, periodically claims the oldest
// undispatched request via ClaimNext, and completes it via Resolve or Reject.
// The bridge guarantees at-most-one in-flight dispatch per request and
// settles each Future exactly once.
//
// Key behaviors:
//   - Oldest-first claim ordering over the pending table
//   - Stale-dispatch recovery: a claim unanswered past the stale window
//     becomes claimable again without duplicating the request
//   - Overall timeout per request, enforced by a per-entry timer plus a
//     periodic sweep
//   - ClearAll on disconnect, rejecting every outstanding submitter
//
// Basic usage:
//
//	b, err := bridge.NewBridge()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	fut := b.Submit("get_file_tree", payload)
//	result, err := fut.Await(ctx)
//
// Requests are held in memory only; nothing survives a process restart.
package bridge
