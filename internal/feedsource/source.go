// Package feedsource is the live collection of mural actions.
//
// A Source pushes complete snapshots (newest first, capped at FeedLimit) to
// every subscriber whenever the collection changes, and accepts writes.
// Subscribers never see deltas; each delivery replaces the previous one.
package feedsource

import (
	"context"

	"github.com/vibeteen/vibe-teen/internal/model"
)

// FeedLimit is how many entries a snapshot carries by default.
const FeedLimit = 200

// Source is what the reconciler side talks to.
//
// Callbacks for one subscription run on a single goroutine, one at a time, in
// commit order. A slow subscriber only ever sees the newest pending snapshot;
// older ones are dropped. The slice passed to onSnapshot is shared between
// subscribers and must not be modified.
type Source interface {
	// Subscribe registers callbacks and returns the function that ends the
	// subscription. Calling it more than once is harmless.
	Subscribe(onSnapshot func([]model.Action), onError func(error)) (unsubscribe func())

	// Create stores one action. It is a single attempt: no retry on failure.
	// The new action reaches subscribers through a later snapshot, never
	// through the return value.
	Create(ctx context.Context, a model.NewAction) error

	// Delete removes an action.
	Delete(ctx context.Context, id string) error
}
