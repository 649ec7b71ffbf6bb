package exchange

import (
	"context"

	"octoadvisor/internal/model"
)

// CandleSource returns candle rows given a millisecond cursor. The history
// updater never depends on exchange internals, only on this contract.
type CandleSource interface {
	// Candles returns up to limit bars with open time >= sinceMS, oldest first.
	Candles(ctx context.Context, pair string, tf model.Timeframe, sinceMS int64, limit int) ([]model.Candle, error)
	Name() string
}

// PortfolioSource fetches the full account snapshot.
type PortfolioSource interface {
	FetchPortfolio(ctx context.Context) (*model.Portfolio, error)
	Name() string
}

// MockSource returns controllable fixed data for development and testing.
type MockSource struct {
	Pages     [][]model.Candle
	Portfolio *model.Portfolio
	Err       error

	calls int
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Candles(_ context.Context, _ string, _ model.Timeframe, sinceMS int64, _ int) ([]model.Candle, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.calls >= len(m.Pages) {
		return nil, nil
	}
	page := m.Pages[m.calls]
	m.calls++
	// honor the cursor the way a real API would
	var out []model.Candle
	for _, c := range page {
		if c.Timestamp >= sinceMS {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockSource) FetchPortfolio(_ context.Context) (*model.Portfolio, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Portfolio, nil
}
