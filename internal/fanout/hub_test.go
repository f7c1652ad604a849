package fanout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

func hotOrder(symbol string, category model.Category) *model.HotOrder {
	return &model.HotOrder{
		TrackedOrder: model.TrackedOrder{
			Symbol:          symbol,
			AnchorPrice:     decimal.NewFromFloat(100),
			CurrentNotional: decimal.NewFromFloat(50000),
		},
		Weight: model.WeightResult{RecommendedCategory: category, RecommendedWeight: 0.8},
	}
}

func TestPrivateAndVIPReceiveEveryDelta(t *testing.T) {
	hub := NewHub(0, "binance-futures")
	priv := hub.Subscribe(TierPrivate)
	vip := hub.Subscribe(TierVIP)

	hub.Broadcast(model.BroadcastDelta{Event: model.HotAdmit, Order: hotOrder("BTCUSDT", model.CategoryGold)})

	select {
	case <-priv.Receive():
	case <-time.After(time.Second):
		t.Fatalf("private subscriber did not receive delta")
	}
	select {
	case <-vip.Receive():
	case <-time.After(time.Second):
		t.Fatalf("vip subscriber did not receive delta")
	}
}

func TestPublicTierOnlyReceivesDiamondCategory(t *testing.T) {
	hub := NewHub(0, "binance-futures")
	pub := hub.Subscribe(TierPublic)

	hub.Broadcast(model.BroadcastDelta{Event: model.HotUpdate, Order: hotOrder("ETHUSDT", model.CategoryGold)})
	select {
	case <-pub.Receive():
		t.Fatalf("public subscriber should not receive a non-diamond delta")
	case <-time.After(50 * time.Millisecond):
	}

	hub.Broadcast(model.BroadcastDelta{Event: model.HotUpdate, Order: hotOrder("ETHUSDT", model.CategoryDiamond)})
	select {
	case msg := <-pub.Receive():
		proj, ok := msg.(PublicProjection)
		if !ok {
			t.Fatalf("expected PublicProjection, got %T", msg)
		}
		if proj.Category != model.CategoryDiamond {
			t.Fatalf("expected diamond projection, got %s", proj.Category)
		}
	case <-time.After(time.Second):
		t.Fatalf("public subscriber did not receive diamond delta")
	}
}

func TestPublicTierRespectsDelay(t *testing.T) {
	hub := NewHub(100*time.Millisecond, "binance-futures")
	pub := hub.Subscribe(TierPublic)

	start := time.Now()
	hub.Broadcast(model.BroadcastDelta{Event: model.HotUpdate, Order: hotOrder("SOLUSDT", model.CategoryDiamond)})

	select {
	case <-pub.Receive():
		if time.Since(start) < 90*time.Millisecond {
			t.Fatalf("public delta delivered before configured delay elapsed")
		}
	case <-time.After(time.Second):
		t.Fatalf("public subscriber did not receive delayed delta")
	}
}

func TestSlowSubscriberDroppedWithoutBlockingOthers(t *testing.T) {
	hub := NewHub(0, "binance-futures")
	slow := hub.Subscribe(TierPrivate)
	healthy := hub.Subscribe(TierPrivate)

	for i := 0; i < subscriberQueueCapacity+5; i++ {
		hub.Broadcast(model.BroadcastDelta{Event: model.HotUpdate, Order: hotOrder("BTCUSDT", model.CategoryGold)})
	}

	hub.mu.Lock()
	_, stillThere := hub.subscribers[TierPrivate][slow.ID]
	hub.mu.Unlock()
	if stillThere {
		t.Fatalf("expected slow subscriber to be dropped once its queue filled")
	}

	select {
	case <-healthy.Receive():
	default:
		t.Fatalf("expected healthy subscriber to have received at least one delta")
	}
}
