// Package chat implements the conversation session manager: the lifecycle
// of a single two-party (client / firm) conversation.
//
// # Overview
//
// A Manager produces Sessions:
//
//	mgr := chat.NewManager(store, broadcaster, broadcaster, chat.Options{}, logger)
//	sess, err := mgr.Open(ctx, clientID)
//
// Open finds or lazily creates the client's conversation, loads the ordered
// history, and establishes a realtime subscription. The returned Session
// exposes Messages (snapshot), Updates (live deliveries), Send, and Close.
//
// # Find-or-create
//
// At most one conversation exists per client. Two near-simultaneous opens
// race on the read-then-insert, but the store's unique constraint picks a
// single winner; the loser re-reads and both opens converge on the same
// conversation id.
//
// # Display semantics
//
// Send persists a message and publishes an insert notification, but never
// appends to the local list. The append happens only when the notification
// arrives through the subscription, so the realtime channel is the single
// source of truth for what is displayed and a whole class of
// duplicate-append bugs cannot occur. Duplicate deliveries are filtered by
// message id before appending.
//
// # Subscription lifecycle
//
// The subscription moves through unsubscribed, subscribing, active, and
// errored states. A channel error schedules a resubscribe with capped
// exponential backoff; after a configurable number of consecutive failures
// the session parks in the terminal unavailable state. Closing the session
// releases the subscription handle before Close returns, so a close
// followed by a re-open can never hold two live handles.
//
// # Failure surface
//
//   - Open failures wrap ErrConversationUnavailable; callers retry Open.
//   - Send failures return *SendError carrying the draft text so the user's
//     input is never lost. No automatic retry is performed.
//   - Channel errors are recovered internally and not surfaced unless
//     retries are exhausted.
package chat
