package domain

import "context"

// MarketDataSource provides bazaar price history and player orders.
// Implementations return errors wrapping ErrDataUnavailable on upstream failure.
type MarketDataSource interface {
	// GetHistory returns the item's price history in ascending time order
	GetHistory(ctx context.Context, item string, period Period) ([]PricePoint, error)

	// GetPlayerOrders returns the orders placed by a player
	GetPlayerOrders(ctx context.Context, player string) ([]PlayerOrder, error)
}

// QuoteSource resolves the current market quote for an item.
// Returns an error wrapping ErrQuoteUnavailable when no quote exists.
type QuoteSource interface {
	Quote(ctx context.Context, item string) (MarketQuote, error)
}

// HeldItemsProvider lists the distinct items currently held
type HeldItemsProvider interface {
	HeldItems(ctx context.Context) ([]string, error)
}
