// Package coflnet fetches bazaar price history and player orders from the coflnet sky API.
package coflnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/timeutil"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public bazaar endpoint
const DefaultBaseURL = "https://sky.coflnet.com/api/bazaar"

// Client for the coflnet bazaar API
type Client struct {
	baseURL    string
	client     *http.Client
	normalizer *timeutil.Normalizer
	log        zerolog.Logger
}

// NewClient creates a coflnet client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, normalizer *timeutil.Normalizer, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if normalizer == nil {
		normalizer = timeutil.NewNormalizer(timeutil.DefaultOffset)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		normalizer: normalizer,
		log:        log.With().Str("client", "coflnet").Logger(),
	}
}

// historyEntry is one element of the history response
type historyEntry struct {
	Timestamp  string  `json:"timestamp"`
	Buy        float64 `json:"buy"`
	Sell       float64 `json:"sell"`
	BuyVolume  float64 `json:"buyVolume"`
	SellVolume float64 `json:"sellVolume"`
	MaxBuy     float64 `json:"maxBuy"`
	MinSell    float64 `json:"minSell"`
}

// GetHistory returns the item's price history, oldest first.
func (c *Client) GetHistory(ctx context.Context, item string, period domain.Period) ([]domain.PricePoint, error) {
	if item == "" {
		return nil, fmt.Errorf("%w: empty item", domain.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/%s/history/%s", c.baseURL, url.PathEscape(item), url.PathEscape(string(period)))

	var entries []historyEntry
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("history %s/%s: %w", item, period, err)
	}

	points := make([]domain.PricePoint, 0, len(entries))
	for i, e := range entries {
		ts, err := c.normalizer.Parse(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: history %s entry %d: %v", domain.ErrDataUnavailable, item, i, err)
		}
		points = append(points, domain.PricePoint{
			Timestamp:  ts,
			Buy:        e.Buy,
			Sell:       e.Sell,
			BuyVolume:  e.BuyVolume,
			SellVolume: e.SellVolume,
			MaxBuy:     e.MaxBuy,
			MinSell:    e.MinSell,
		})
	}

	// Upstream returns newest first
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	c.log.Debug().
		Str("item", item).
		Str("period", string(period)).
		Int("points", len(points)).
		Msg("Fetched history")

	return points, nil
}

// GetPlayerOrders returns the orders placed by a player.
// Orders whose timestamp cannot be parsed are returned with TimestampValid=false.
func (c *Client) GetPlayerOrders(ctx context.Context, player string) ([]domain.PlayerOrder, error) {
	if player == "" {
		return nil, fmt.Errorf("%w: empty player", domain.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/player/%s/orders", c.baseURL, url.PathEscape(player))

	var raw []rawOrder
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("orders %s: %w", player, err)
	}

	orders := make([]domain.PlayerOrder, len(raw))
	for i, r := range raw {
		orders[i] = r.toDomain(c.normalizer)
	}
	return orders, nil
}

// getJSON performs a GET and decodes the body. All failures wrap ErrDataUnavailable.
func (c *Client) getJSON(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", endpoint).Msg("Fetching")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", domain.ErrDataUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", domain.ErrDataUnavailable, err)
	}
	return nil
}
