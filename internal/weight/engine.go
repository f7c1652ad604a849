// Package weight implements the weight engine (C7): a pure function
// from order data plus market context to time factors, context
// factors, per-algorithm weights and categories. It performs no I/O
// and must never suspend.
package weight

import (
	"math"

	"github.com/wallsentry/wallsentry/internal/model"
)

const (
	maxSizeFactor       = 10.0
	maxVolatilityFactor = 0.1
	roundLevelTheta     = 0.001
	maxScanCountFactor  = 50.0
)

// coefficients is (alpha_T, alpha_S, alpha_R, alpha_V, alpha_G),
// summing to 1, per algorithm.
type coefficients struct {
	t, s, r, v, g float64
}

var algorithmCoefficients = map[model.Algorithm]coefficients{
	model.AlgoConservative:   {t: 0.50, s: 0.15, r: 0.10, v: 0.15, g: 0.10},
	model.AlgoAggressive:     {t: 0.15, s: 0.35, r: 0.10, v: 0.10, g: 0.30},
	model.AlgoVolumeWeighted: {t: 0.10, s: 0.50, r: 0.10, v: 0.10, g: 0.20},
	model.AlgoTimeWeighted:   {t: 0.60, s: 0.10, r: 0.10, v: 0.10, g: 0.10},
	model.AlgoHybrid:         {t: 0.30, s: 0.25, r: 0.15, v: 0.15, g: 0.15},
}

// timeFactorWeights blends the eight time-factor formulas into T.
// Chosen so the blend leans on the 1h-scale linear/exp factors with
// the adaptive ones contributing a smaller, context-sensitive share.
var timeFactorWeights = map[string]float64{
	"linear_1h":           0.20,
	"linear_4h":           0.10,
	"exp_30m":             0.15,
	"exp_60m":             0.15,
	"log":                 0.10,
	"sqrt_norm":           0.10,
	"adaptive_volatility": 0.10,
	"adaptive_market":     0.10,
}

// Engine computes WeightResult for a HotOrder given its market
// context. It carries only configuration, no mutable state.
type Engine struct {
	Recommended model.Algorithm
}

func New(recommended model.Algorithm) *Engine {
	if recommended == "" {
		recommended = model.AlgoHybrid
	}
	return &Engine{Recommended: recommended}
}

// Input bundles everything the engine needs, isolating it from the
// HotOrder/TrackedOrder types so it stays a pure function of its
// arguments.
type Input struct {
	LifetimeMinutes  float64
	ScanCount        int
	SizeVsAverage    float64
	IsRoundLevel     bool
	RoundLevelDistance float64
	Context          model.MarketContext
}

// Compute runs the full weight-engine pipeline and returns the single
// output struct consumed by the hot pool. (The primary scanner's
// report uses AdaptiveReport, not Compute.)
func (e *Engine) Compute(in Input) model.WeightResult {
	timeFactors := computeTimeFactors(in.LifetimeMinutes, in.Context)
	blend := blendTimeFactors(timeFactors)

	sizeFactor := math.Min(1, in.SizeVsAverage/maxSizeFactor)
	roundFactor := 0.0
	if in.IsRoundLevel && in.RoundLevelDistance <= roundLevelTheta {
		roundFactor = 1 - in.RoundLevelDistance/roundLevelTheta
	}
	volatilityFactor := math.Min(1, in.Context.Volatility1h/maxVolatilityFactor)
	growthFactor := math.Min(1, float64(in.ScanCount)/maxScanCountFactor)

	modTime := in.Context.TimeOfDayFactor
	modDay := in.Context.DayOfWeekFactor
	modVol := marketVolatilityModifier(in.Context.Temperature)
	modifier := (modTime * modDay * modVol) / 3

	weights := make(map[model.Algorithm]float64, len(algorithmCoefficients))
	categories := make(map[model.Algorithm]model.Category, len(algorithmCoefficients))
	for algo, c := range algorithmCoefficients {
		base := c.t*blend + c.s*sizeFactor + c.r*roundFactor + c.v*(1-volatilityFactor) + c.g*growthFactor
		w := clamp(base*modifier, 0, 1)
		weights[algo] = w
		categories[algo] = categorize(w)
	}

	recommended := e.Recommended
	recWeight, ok := weights[recommended]
	if !ok {
		recommended = model.AlgoHybrid
		recWeight = weights[recommended]
	}

	return model.WeightResult{
		TimeFactors:         timeFactors,
		Blend:               blend,
		SizeFactor:          sizeFactor,
		RoundFactor:         roundFactor,
		VolatilityFactor:    volatilityFactor,
		GrowthFactor:        growthFactor,
		ModTime:             modTime,
		ModDay:              modDay,
		ModVolatility:       modVol,
		Weights:             weights,
		Categories:          categories,
		Recommended:         recommended,
		RecommendedWeight:   recWeight,
		RecommendedCategory: categories[recommended],
	}
}

func computeTimeFactors(t float64, ctx model.MarketContext) map[string]float64 {
	return map[string]float64{
		"linear_1h":           math.Min(1, t/60),
		"linear_4h":           math.Min(1, t/240),
		"exp_30m":             1 - math.Exp(-t/30),
		"exp_60m":             1 - math.Exp(-t/60),
		"log":                 math.Min(1, math.Log(1+t)/math.Log(1+240)),
		"sqrt_norm":           math.Min(1, math.Sqrt(t/240)),
		"adaptive_volatility": clamp(t/(60*(1+ctx.Volatility1h*10)), 0, 1),
		"adaptive_market":     clamp(t/(60*marketTemperatureFactor(ctx.Temperature)), 0, 1),
	}
}

func blendTimeFactors(factors map[string]float64) float64 {
	var num, den float64
	for name, w := range timeFactorWeights {
		num += w * factors[name]
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// marketTemperatureFactor scales the adaptive_market time factor:
// hotter markets compress the time-to-full-weight window, since a
// wall surviving a volatile market is more notable sooner.
func marketTemperatureFactor(temp model.MarketTemperature) float64 {
	switch temp {
	case model.TempCold:
		return 1.5
	case model.TempWarm:
		return 1.0
	case model.TempHot:
		return 0.75
	case model.TempExtreme:
		return 0.5
	default:
		return 1.0
	}
}

// marketVolatilityModifier is the market-wide volatility modifier in
// [0.5, 1.5], keyed by the same temperature bands.
func marketVolatilityModifier(temp model.MarketTemperature) float64 {
	switch temp {
	case model.TempCold:
		return 0.7
	case model.TempWarm:
		return 1.0
	case model.TempHot:
		return 1.3
	case model.TempExtreme:
		return 1.5
	default:
		return 1.0
	}
}

// categorize buckets a weight into basic/gold/diamond, semi-open on
// the right of the lower bound: a boundary value falls into the
// upper category.
func categorize(w float64) model.Category {
	switch {
	case w < 1.0/3.0:
		return model.CategoryBasic
	case w < 2.0/3.0:
		return model.CategoryGold
	default:
		return model.CategoryDiamond
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
