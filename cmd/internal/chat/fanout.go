package chat

import (
	"context"
	"log/slog"
)

// Deliverer pushes an accepted message towards the recipient, best-effort.
type Deliverer interface {
	// Deliver returns the message with its post-delivery read state.
	// It must never block the caller on the recipient's network state, and it
	// never fails the send: push problems are logged and swallowed.
	Deliver(ctx context.Context, msg Message) (Message, error)
}

// Fanout decides between live push and pull-based retrieval.
//
// If the recipient holds at least one live connection the message is considered
// seen on arrival: read is flipped on the stored message first, then the message
// is pushed to ALL of the recipient's connections. An absent recipient leaves
// the message unread until their next history fetch.
type Fanout struct {
	log      *slog.Logger
	presence *Presence
	store    Store
	metrics  *Metrics
}

// NewFanout constructs the delivery fanout.
func NewFanout(log *slog.Logger, presence *Presence, store Store, metrics *Metrics) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Fanout{log: log, presence: presence, store: store, metrics: metrics}
}

// Deliver implements Deliverer.
func (f *Fanout) Deliver(ctx context.Context, msg Message) (Message, error) {
	if f == nil || f.presence == nil {
		return msg, nil
	}

	if !f.presence.Online(msg.ReceiverID) {
		f.metrics.DeliveryMissed.Inc()
		return msg, nil
	}

	// Recipient is actively present: the message counts as seen on arrival.
	// This deliberately conflates "delivered to a connected socket" with "read";
	// see the read-state notes in DESIGN.md.
	if err := f.store.MarkRead(ctx, []string{msg.ID}); err != nil {
		// Keep read=false in the ack; it converges on the next history fetch.
		f.log.Warn("fanout.mark_read.fail", "msg_id", msg.ID, "err", err)
	} else {
		msg.Read = true
	}

	n := f.presence.Push(msg.ReceiverID, PushEvent{Kind: PushMessage, Message: msg})
	if n > 0 {
		f.metrics.Delivered.Inc()
	} else {
		// All connections vanished or were saturated between the presence check
		// and the push. The message is stored either way.
		f.metrics.DeliveryMissed.Inc()
		f.log.Info("fanout.push.miss", "msg_id", msg.ID, "receiver_id", msg.ReceiverID)
	}

	return msg, nil
}
