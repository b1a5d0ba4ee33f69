package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/bazaar-tracker/internal/domain"
)

// MockMarketDataSource serves canned histories and orders
type MockMarketDataSource struct {
	mu        sync.Mutex
	Histories map[string][]domain.PricePoint
	Orders    map[string][]domain.PlayerOrder
	Failing   map[string]bool
	Calls     int
}

// NewMockMarketDataSource creates an empty mock
func NewMockMarketDataSource() *MockMarketDataSource {
	return &MockMarketDataSource{
		Histories: make(map[string][]domain.PricePoint),
		Orders:    make(map[string][]domain.PlayerOrder),
		Failing:   make(map[string]bool),
	}
}

// GetHistory returns the configured history; unknown or failing items and a
// done context wrap ErrDataUnavailable, as the HTTP client does
func (m *MockMarketDataSource) GetHistory(ctx context.Context, item string, _ domain.Period) ([]domain.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: history for %s: %w", domain.ErrDataUnavailable, item, err)
	}

	points, ok := m.Histories[item]
	if !ok || m.Failing[item] {
		return nil, fmt.Errorf("%w: no history for %s", domain.ErrDataUnavailable, item)
	}
	return points, nil
}

// GetPlayerOrders returns the configured orders; failing players wrap ErrDataUnavailable
func (m *MockMarketDataSource) GetPlayerOrders(_ context.Context, player string) ([]domain.PlayerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.Failing[player] {
		return nil, fmt.Errorf("%w: orders for %s", domain.ErrDataUnavailable, player)
	}
	return m.Orders[player], nil
}

// CallCount returns the number of calls made
func (m *MockMarketDataSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockQuoteSource serves fixed quotes
type MockQuoteSource struct {
	Quotes map[string]domain.MarketQuote
	Errs   map[string]error
}

// Quote returns the configured error, the configured quote, or an error
// wrapping ErrQuoteUnavailable
func (m *MockQuoteSource) Quote(_ context.Context, item string) (domain.MarketQuote, error) {
	if err, ok := m.Errs[item]; ok {
		return domain.MarketQuote{}, err
	}
	q, ok := m.Quotes[item]
	if !ok {
		return domain.MarketQuote{}, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, item)
	}
	return q, nil
}
