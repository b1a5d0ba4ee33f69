// Package ledger records open holdings and realized trades.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/bazaar-tracker/internal/database"
	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/events"
	"github.com/aristath/bazaar-tracker/internal/timeutil"
	"github.com/aristath/bazaar-tracker/pkg/id"
	"github.com/rs/zerolog"
)

const moduleName = "ledger"

// Column order must match scanHolding and scanTrade
const (
	holdingColumns = `id, item, quantity, buy_price, opened_at`
	tradeColumns   = `id, holding_id, item, quantity, buy_price, sale_price, sale_value, closed_at`
)

// Store handles holding and trade persistence in the ledger database
type Store struct {
	db     *sql.DB
	ids    *id.Generator
	events *events.Manager
	now    func() time.Time
	log    zerolog.Logger
}

// NewStore creates a ledger store. eventManager may be nil.
func NewStore(ledgerDB *sql.DB, eventManager *events.Manager, log zerolog.Logger) *Store {
	return &Store{
		db:     ledgerDB,
		ids:    id.NewGenerator(),
		events: eventManager,
		now:    time.Now,
		log:    log.With().Str("repo", "ledger").Logger(),
	}
}

// WithClock replaces the store clock (tests)
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// OpenHolding records a purchase of quantity units of item at buyPrice per unit
func (s *Store) OpenHolding(ctx context.Context, item string, quantity, buyPrice float64) (domain.Holding, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return domain.Holding{}, fmt.Errorf("%w: item is required", domain.ErrInvalidInput)
	}
	if !validAmount(quantity) || quantity <= 0 {
		return domain.Holding{}, fmt.Errorf("%w: quantity must be positive, got %v", domain.ErrInvalidInput, quantity)
	}
	if !validAmount(buyPrice) || buyPrice <= 0 {
		return domain.Holding{}, fmt.Errorf("%w: buy price must be positive, got %v", domain.ErrInvalidInput, buyPrice)
	}

	holdingID, err := s.ids.New()
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to generate holding id: %w", err)
	}

	h := domain.Holding{
		OpenedAt: s.now().UTC().Truncate(time.Second),
		ID:       holdingID,
		Item:     item,
		Quantity: quantity,
		BuyPrice: buyPrice,
	}

	query := `INSERT INTO portfolio (` + holdingColumns + `) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, h.ID, h.Item, h.Quantity, h.BuyPrice, h.OpenedAt.Unix()); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to insert holding: %w", err)
	}

	s.log.Info().
		Str("holding_id", h.ID).
		Str("item", h.Item).
		Float64("quantity", h.Quantity).
		Float64("buy_price", h.BuyPrice).
		Msg("Holding opened")

	s.events.Emit(moduleName, &events.HoldingOpenedData{
		HoldingID: h.ID,
		Item:      h.Item,
		Quantity:  h.Quantity,
		BuyPrice:  h.BuyPrice,
	})

	return h, nil
}

// CloseHolding sells the whole holding at salePrice per unit. The trade insert and
// the holding delete happen in one transaction; a missing holding creates no trade.
func (s *Store) CloseHolding(ctx context.Context, holdingID string, salePrice float64) (domain.RealizedTrade, error) {
	if !validAmount(salePrice) || salePrice < 0 {
		return domain.RealizedTrade{}, fmt.Errorf("%w: sale price must be non-negative, got %v", domain.ErrInvalidInput, salePrice)
	}

	tradeID, err := s.ids.New()
	if err != nil {
		return domain.RealizedTrade{}, fmt.Errorf("failed to generate trade id: %w", err)
	}

	var trade domain.RealizedTrade
	err = database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM portfolio WHERE id = ?`, holdingID)
		h, err := scanHolding(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("holding %s: %w", holdingID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read holding: %w", err)
		}

		trade = domain.RealizedTrade{
			ClosedAt:  s.now().UTC().Truncate(time.Second),
			ID:        tradeID,
			HoldingID: h.ID,
			Item:      h.Item,
			Quantity:  h.Quantity,
			BuyPrice:  h.BuyPrice,
			SalePrice: salePrice,
			SaleValue: h.Quantity * salePrice,
		}

		insert := `INSERT INTO sales (` + tradeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insert,
			trade.ID, trade.HoldingID, trade.Item, trade.Quantity,
			trade.BuyPrice, trade.SalePrice, trade.SaleValue, trade.ClosedAt.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio WHERE id = ?`, h.ID); err != nil {
			return fmt.Errorf("failed to delete holding: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.RealizedTrade{}, fmt.Errorf("failed to close holding: %w", err)
	}

	s.log.Info().
		Str("holding_id", trade.HoldingID).
		Str("trade_id", trade.ID).
		Str("item", trade.Item).
		Float64("sale_value", trade.SaleValue).
		Msg("Holding closed")

	s.events.Emit(moduleName, &events.HoldingClosedData{
		HoldingID: trade.HoldingID,
		TradeID:   trade.ID,
		Item:      trade.Item,
		Quantity:  trade.Quantity,
		SalePrice: trade.SalePrice,
		SaleValue: trade.SaleValue,
	})

	return trade, nil
}

// DeleteHolding removes a holding without recording a sale
func (s *Store) DeleteHolding(ctx context.Context, holdingID string) error {
	if err := s.deleteByID(ctx, "portfolio", holdingID); err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", holdingID, err)
	}
	s.log.Info().Str("holding_id", holdingID).Msg("Holding deleted")
	s.events.Emit(moduleName, &events.RecordDeletedData{ID: holdingID, Kind: events.HoldingDeleted})
	return nil
}

// DeleteTrade removes a realized trade
func (s *Store) DeleteTrade(ctx context.Context, tradeID string) error {
	if err := s.deleteByID(ctx, "sales", tradeID); err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", tradeID, err)
	}
	s.log.Info().Str("trade_id", tradeID).Msg("Trade deleted")
	s.events.Emit(moduleName, &events.RecordDeletedData{ID: tradeID, Kind: events.TradeDeleted})
	return nil
}

// deleteByID deletes one row; table is never user input
func (s *Store) deleteByID(ctx context.Context, table, rowID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, rowID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetHolding returns a holding by id
func (s *Store) GetHolding(ctx context.Context, holdingID string) (domain.Holding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM portfolio WHERE id = ?`, holdingID)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Holding{}, fmt.Errorf("holding %s: %w", holdingID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// GetTrade returns a realized trade by id
func (s *Store) GetTrade(ctx context.Context, tradeID string) (domain.RealizedTrade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM sales WHERE id = ?`, tradeID)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RealizedTrade{}, fmt.Errorf("trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RealizedTrade{}, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// ListHoldings returns all open holdings, oldest first
func (s *Store) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+holdingColumns+` FROM portfolio ORDER BY opened_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// HeldItems returns the distinct items with open holdings, sorted
func (s *Store) HeldItems(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT item FROM portfolio ORDER BY item`)
	if err != nil {
		return nil, fmt.Errorf("failed to query held items: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListTradesForDate returns trades closed on date's UTC calendar day
func (s *Store) ListTradesForDate(ctx context.Context, date time.Time) ([]domain.RealizedTrade, error) {
	start := timeutil.StartOfDayUTC(date)
	return s.ListTradesInRange(ctx, start, start.Add(24*time.Hour))
}

// ListTradesInRange returns trades closed in [from, to), oldest first
func (s *Store) ListTradesInRange(ctx context.Context, from, to time.Time) ([]domain.RealizedTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM sales
		WHERE closed_at >= ? AND closed_at < ?
		ORDER BY closed_at, id`

	rows, err := s.db.QueryContext(ctx, query, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.RealizedTrade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (domain.Holding, error) {
	var (
		h        domain.Holding
		openedAt int64
	)
	if err := row.Scan(&h.ID, &h.Item, &h.Quantity, &h.BuyPrice, &openedAt); err != nil {
		return domain.Holding{}, err
	}
	h.OpenedAt = time.Unix(openedAt, 0).UTC()
	return h, nil
}

func scanTrade(row rowScanner) (domain.RealizedTrade, error) {
	var (
		t        domain.RealizedTrade
		closedAt int64
	)
	if err := row.Scan(&t.ID, &t.HoldingID, &t.Item, &t.Quantity, &t.BuyPrice, &t.SalePrice, &t.SaleValue, &closedAt); err != nil {
		return domain.RealizedTrade{}, err
	}
	t.ClosedAt = time.Unix(closedAt, 0).UTC()
	return t, nil
}
