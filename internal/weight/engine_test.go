package weight

import (
	"testing"

	"github.com/wallsentry/wallsentry/internal/model"
)

func TestCategorizeBoundariesAreSemiOpen(t *testing.T) {
	if got := categorize(0); got != model.CategoryBasic {
		t.Fatalf("0 should be basic, got %s", got)
	}
	if got := categorize(1.0 / 3.0); got != model.CategoryGold {
		t.Fatalf("exact lower bound 1/3 should fall into gold, got %s", got)
	}
	if got := categorize(2.0 / 3.0); got != model.CategoryDiamond {
		t.Fatalf("exact lower bound 2/3 should fall into diamond, got %s", got)
	}
	if got := categorize(1); got != model.CategoryDiamond {
		t.Fatalf("1 should be diamond, got %s", got)
	}
}

func TestComputeWeightsInRange(t *testing.T) {
	e := New(model.AlgoHybrid)
	ctx := model.MarketContext{
		Volatility1h:    0.02,
		Temperature:     model.TempWarm,
		TimeOfDayFactor: 1.0,
		DayOfWeekFactor: 1.0,
	}
	result := e.Compute(Input{
		LifetimeMinutes: 90,
		ScanCount:       20,
		SizeVsAverage:   4,
		Context:         ctx,
	})
	for algo, w := range result.Weights {
		if w < 0 || w > 1 {
			t.Fatalf("weight for %s out of [0,1]: %f", algo, w)
		}
	}
	for name, f := range result.TimeFactors {
		if f < 0 || f > 1 {
			t.Fatalf("time factor %s out of [0,1]: %f", name, f)
		}
	}
	if result.RecommendedCategory != result.Categories[result.Recommended] {
		t.Fatalf("recommended category must match the recommended algorithm's bucket")
	}
}

func TestCategorizationDistribution(t *testing.T) {
	weights := []float64{0.2, 0.3, 0.4, 0.5, 0.7, 0.8}
	counts := map[model.Category]int{}
	for _, w := range weights {
		counts[categorize(w)]++
	}
	if counts[model.CategoryBasic] != 2 || counts[model.CategoryGold] != 2 || counts[model.CategoryDiamond] != 2 {
		t.Fatalf("expected 2/2/2 split, got %+v", counts)
	}
}

func TestAdaptiveReportDeterministic(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 1000}
	a := AdaptiveReport(values)
	b := AdaptiveReport(values)
	if a != b {
		t.Fatalf("adaptive selector must be deterministic for the same distribution: %+v vs %+v", a, b)
	}
}
