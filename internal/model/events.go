package model

// ObserverEventKind tags the typed observer-stage (C5) events. The
// observer pool itself does not emit them: it hands promotions to the
// hot pool as TrackedOrder values through Promoter.Admit.
type ObserverEventKind string

const (
	ObserverIngest  ObserverEventKind = "Ingest"
	ObserverUpdate  ObserverEventKind = "Update"
	ObserverPromote ObserverEventKind = "Promote"
	ObserverDie     ObserverEventKind = "Die"
)

// ObserverEvent describes one state change of a TrackedOrder.
type ObserverEvent struct {
	Kind  ObserverEventKind
	Order TrackedOrder
}

// HotEventKind tags the typed events the hot pool (C6) emits toward
// the fan-out server.
type HotEventKind string

const (
	HotAdmit  HotEventKind = "Admit"
	HotUpdate HotEventKind = "Update"
	HotRemove HotEventKind = "Remove"
)

// HotEvent carries a HotOrder change plus whether it crossed the
// significance threshold (§4.5 step 2g) that gates broadcast/persist.
type HotEvent struct {
	Kind        HotEventKind
	Order       HotOrder
	Significant bool
}

// DeltaKind tags the shape of a broadcast delta.
type DeltaKind string

const (
	DeltaFull      DeltaKind = "Full"      // private/VIP tiers
	DeltaProjected DeltaKind = "Projected" // public tier
)

// BroadcastDelta is the unit pushed through the fan-out queue (§4.8).
// Full carries the HotOrder itself; Projected carries the minimal
// public-tier projection.
type BroadcastDelta struct {
	Kind       DeltaKind
	Event      HotEventKind
	Order      *HotOrder
	Projection *HotOrderProjection
}
