package usecase

import (
	"fmt"
	"math"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

const maxForecastHorizon = 36

// ForecastConfig holds the projection horizon and the ratios that trigger suggestions.
type ForecastConfig struct {
	HorizonMonths  int
	RiseRatio      float64
	FallRatio      float64
	DominanceShare float64
}

func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		HorizonMonths:  3,
		RiseRatio:      1.5,
		FallRatio:      0.5,
		DominanceShare: 0.8,
	}
}

// projectSeries fits a least-squares line over monthly quantities and
// evaluates it horizon months after the latest point.
func projectSeries(product string, series []domain.MonthlyPoint, horizon int) domain.ProductForecast {
	out := domain.ProductForecast{
		Product:       product,
		HorizonMonths: horizon,
		DataPoints:    len(series),
	}
	if len(series) == 0 {
		return out
	}

	latest := series[len(series)-1]
	current := latest.TotalQuantity.InexactFloat64()
	month := latest.Month
	out.CurrentMonth = &month
	out.CurrentQuantity = current
	out.ProjectedQuantity = current
	if len(series) < 2 {
		return out
	}

	n := float64(len(series))
	var sumX, sumY float64
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, point := range series {
		xs[i] = float64(point.Month.Ordinal() - latest.Month.Ordinal())
		ys[i] = point.TotalQuantity.InexactFloat64()
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return out
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX
	out.Trend = round2(slope)
	out.ProjectedQuantity = round2(math.Max(0, intercept+slope*float64(horizon)))
	return out
}

func trendSuggestion(f domain.ProductForecast, cfg ForecastConfig) (string, bool) {
	if f.DataPoints < 2 || f.CurrentQuantity <= 0 || f.CurrentMonth == nil {
		return "", false
	}
	switch {
	case f.ProjectedQuantity >= f.CurrentQuantity*cfg.RiseRatio:
		return fmt.Sprintf(
			"Demand for %q is rising sharply: %.2f units projected %d months after %s, up from %.2f.",
			f.Product, f.ProjectedQuantity, f.HorizonMonths, f.CurrentMonth, f.CurrentQuantity,
		), true
	case f.ProjectedQuantity <= f.CurrentQuantity*cfg.FallRatio:
		return fmt.Sprintf(
			"Demand for %q is falling sharply: %.2f units projected %d months after %s, down from %.2f.",
			f.Product, f.ProjectedQuantity, f.HorizonMonths, f.CurrentMonth, f.CurrentQuantity,
		), true
	}
	return "", false
}

// dominanceSuggestions reports products bought mostly from one supplier.
// Only documents with a known supplier count toward the share.
func dominanceSuggestions(docs []domain.Document, suppliers map[int64]domain.Supplier, products []string, share float64) []string {
	type tally struct {
		total  int
		counts map[int64]int
		order  []int64
	}
	byProduct := make(map[string]*tally)
	for _, doc := range docs {
		if doc.SupplierID == nil {
			continue
		}
		counted := make(map[string]bool)
		for _, item := range doc.LineItems {
			if counted[item.Product] {
				continue
			}
			counted[item.Product] = true
			t, ok := byProduct[item.Product]
			if !ok {
				t = &tally{counts: make(map[int64]int)}
				byProduct[item.Product] = t
			}
			if t.counts[*doc.SupplierID] == 0 {
				t.order = append(t.order, *doc.SupplierID)
			}
			t.counts[*doc.SupplierID]++
			t.total++
		}
	}

	out := make([]string, 0)
	for _, product := range products {
		t, ok := byProduct[product]
		if !ok || t.total < 2 {
			continue
		}
		var top int64
		best := 0
		for _, id := range t.order {
			if t.counts[id] > best {
				best, top = t.counts[id], id
			}
		}
		ratio := float64(best) / float64(t.total)
		if ratio < share {
			continue
		}
		name := suppliers[top].Name
		if name == "" {
			name = fmt.Sprintf("supplier #%d", top)
		}
		out = append(out, fmt.Sprintf(
			"%s supplies %.0f%% of purchases of %q (%d of %d documents); consider a second source.",
			name, ratio*100, product, best, t.total,
		))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
