package fanout

import (
	"github.com/wallsentry/wallsentry/internal/model"
)

// PublicProjection is the minimal public-tier shape (§4.8): symbol,
// exchange, usd value, lifetime, category, weight, plus coarse market
// temperature — never the raw price/quantity a private subscriber
// would see.
type PublicProjection struct {
	Symbol          string                  `json:"symbol"`
	Exchange        string                  `json:"exchange"`
	USDValue        float64                 `json:"usd_value"`
	LifetimeSeconds float64                 `json:"lifetime_seconds"`
	Category        model.Category          `json:"category"`
	Weight          float64                 `json:"weight"`
	Temperature     model.MarketTemperature `json:"market_temperature"`
}

func (h *Hub) project(order model.HotOrder) PublicProjection {
	notional, _ := order.CurrentNotional.Float64()
	return PublicProjection{
		Symbol:          order.Symbol,
		Exchange:        h.exchange,
		USDValue:        notional,
		LifetimeSeconds: order.LifetimeSeconds,
		Category:        order.Weight.RecommendedCategory,
		Weight:          order.Weight.RecommendedWeight,
		Temperature:     order.Context.Temperature,
	}
}
