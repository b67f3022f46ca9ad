package progress

import (
	"log/slog"

	"github.com/alphadose/haxmap"
	"github.com/teris-io/shortid"

	"orthodeck/internal/logging"
)

// subscriberBuffer bounds how far a slow observer may lag before events are
// dropped for it. Delivery is best-effort with no replay.
const subscriberBuffer = 16

// Hub fans progress events out to every connected observer. Subscribers have
// independent lifetimes; a failed or lagging subscriber never blocks delivery
// to the others.
type Hub struct {
	logger *slog.Logger
	subs   *haxmap.Map[string, chan Event]
}

// NewHub constructs an empty hub. The hub is process-wide state; it holds no
// job-specific data and needs no teardown beyond process exit.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logging.NewComponentLogger(logger, "progress-hub"),
		subs:   haxmap.New[string, chan Event](),
	}
}

// Subscribe registers a new observer and returns its subscription ID together
// with the receive channel. A synthetic connecting event is delivered first so
// observers have non-empty state before any job activity.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := shortid.MustGenerate()
	ch := make(chan Event, subscriberBuffer)
	ch <- Event{CurrentStep: StepConnecting, Details: "Connected to progress stream"}
	h.subs.Set(id, ch)
	h.logger.Debug("subscriber registered", logging.String(logging.FieldSubscriber, id))
	return id, ch
}

// Unsubscribe removes a subscriber. Idempotent; the channel is left open so a
// concurrent Publish can never panic on a closed channel.
func (h *Hub) Unsubscribe(id string) {
	h.subs.Del(id)
	h.logger.Debug("subscriber removed", logging.String(logging.FieldSubscriber, id))
}

// Publish delivers event to every currently registered subscriber. Delivery to
// an individual subscriber that cannot accept the event is logged and skipped,
// never aborting delivery to the rest.
func (h *Hub) Publish(event Event) {
	h.subs.ForEach(func(id string, ch chan Event) bool {
		select {
		case ch <- event:
		default:
			h.logger.Warn("subscriber delivery failed, dropping event",
				logging.String(logging.FieldSubscriber, id),
				logging.String("step", event.CurrentStep),
			)
		}
		return true
	})
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	return int(h.subs.Len())
}
