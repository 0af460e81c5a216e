package notify

import (
	"sync"

	"github.com/campuslink/moderation/internal/domain"
	"github.com/google/uuid"
)

// Observer holds channels for live notification subscribers, keyed by
// recipient. Delivery is best-effort: a subscriber that cannot keep up has
// events dropped rather than blocking the write path.
type Observer struct {
	mu sync.RWMutex
	//          map[recipientID] map[subscriberID] channel
	subs map[string]map[string]chan *domain.Notification
}

func NewObserver() *Observer {
	return &Observer{
		subs: make(map[string]map[string]chan *domain.Notification),
	}
}

// Subscribe registers a channel for the recipient's notifications and
// returns it with an unsubscribe func. The channel is closed on
// unsubscribe.
func (o *Observer) Subscribe(recipientID string) (<-chan *domain.Notification, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	subID := uuid.NewString()
	ch := make(chan *domain.Notification, 8)
	if o.subs[recipientID] == nil {
		o.subs[recipientID] = make(map[string]chan *domain.Notification)
	}
	o.subs[recipientID][subID] = ch

	unsubscribe := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if perUser, ok := o.subs[recipientID]; ok {
			if c, ok := perUser[subID]; ok {
				delete(perUser, subID)
				close(c)
			}
			if len(perUser) == 0 {
				delete(o.subs, recipientID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers the notification to the recipient's subscribers without
// blocking.
func (o *Observer) Publish(n *domain.Notification) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
			// Slow consumer; skip.
		}
	}
}
