// Package fanout implements the fan-out server's core broadcast
// contract (C9): three access tiers over the hot pool's delta stream.
// Private gets full HotOrder records with no delay or filter. VIP gets
// the same structure with internal-only fields stripped, no delay.
// Public gets only diamond-category records, delayed, minimally
// projected. Transport (websocket upgrade, auth, ping/pong) lives
// alongside this file but is a collaborator concern — only the tiered
// broadcast/filter logic is core.
package fanout

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wallsentry/wallsentry/internal/model"
)

// Tier names an access level.
type Tier string

const (
	TierPrivate Tier = "private"
	TierVIP     Tier = "vip"
	TierPublic  Tier = "public"
)

const subscriberQueueCapacity = 64

// Subscriber is one connected client's outbound channel. Messages
// already carry whatever shape the tier produces (a *model.HotOrder
// for private/VIP, a PublicProjection for public).
type Subscriber struct {
	ID   uuid.UUID
	Tier Tier
	out  chan any
}

func (s *Subscriber) Receive() <-chan any { return s.out }

// Hub holds the active subscriber set per tier and fans broadcast
// deltas out to them in arrival order. Dropping an individual slow
// subscriber is permitted; dropping a delta for the rest of a tier is
// not — each subscriber gets an independent, non-blocking send.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Tier]map[uuid.UUID]*Subscriber

	publicDelay time.Duration
	exchange    string
}

func NewHub(publicDelay time.Duration, exchangeName string) *Hub {
	return &Hub{
		subscribers: map[Tier]map[uuid.UUID]*Subscriber{
			TierPrivate: {},
			TierVIP:     {},
			TierPublic:  {},
		},
		publicDelay: publicDelay,
		exchange:    exchangeName,
	}
}

// Subscribe registers a new client on a tier and returns its handle.
func (h *Hub) Subscribe(tier Tier) *Subscriber {
	sub := &Subscriber{ID: uuid.New(), Tier: tier, out: make(chan any, subscriberQueueCapacity)}
	h.mu.Lock()
	h.subscribers[tier][sub.ID] = sub
	h.mu.Unlock()
	log.Printf("🔌 fanout: %s subscriber %s connected", tier, sub.ID)
	return sub
}

// Unsubscribe removes a client. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers[sub.Tier], sub.ID)
	h.mu.Unlock()
	log.Printf("🔌 fanout: %s subscriber %s disconnected", sub.Tier, sub.ID)
}

// Publish implements hotpool.Broadcaster so the hot pool can hold a
// Hub behind that narrow interface without depending on this package.
func (h *Hub) Publish(delta model.BroadcastDelta) {
	h.Broadcast(delta)
}

// Broadcast delivers delta to every tier's active subscribers, in the
// order broadcast is called — the hot pool calls this synchronously
// from its own update path, so call order is delivery order. Private
// and VIP receive immediately; public is filtered to diamond-only,
// projected, and released after the configured delay.
func (h *Hub) Broadcast(delta model.BroadcastDelta) {
	if delta.Order == nil {
		return
	}

	h.fanOutFull(TierPrivate, delta.Order)
	h.fanOutFull(TierVIP, stripInternalOnly(delta.Order))

	if delta.Order.Weight.RecommendedCategory != model.CategoryDiamond {
		return
	}
	projection := h.project(*delta.Order)
	if h.publicDelay <= 0 {
		h.fanOutProjection(projection)
		return
	}
	time.AfterFunc(h.publicDelay, func() { h.fanOutProjection(projection) })
}

func (h *Hub) fanOutFull(tier Tier, order *model.HotOrder) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers[tier]))
	for _, s := range h.subscribers[tier] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.out <- order:
		default:
			log.Printf("⚠️  fanout: %s subscriber %s slow, dropping from tier", tier, s.ID)
			h.Unsubscribe(s)
			close(s.out)
		}
	}
}

func (h *Hub) fanOutProjection(p PublicProjection) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers[TierPublic]))
	for _, s := range h.subscribers[TierPublic] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.out <- p:
		default:
			log.Printf("⚠️  fanout: public subscriber %s slow, dropping", s.ID)
			h.Unsubscribe(s)
			close(s.out)
		}
	}
}

// stripInternalOnly returns the VIP view of a HotOrder. Nothing in
// the current schema is tagged internal-only, so this is currently an
// identity copy kept as the seam the spec's VIP tier calls for.
func stripInternalOnly(order *model.HotOrder) *model.HotOrder {
	cp := *order
	return &cp
}
