package coflnet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aristath/bazaar-tracker/internal/domain"
	"github.com/aristath/bazaar-tracker/internal/timeutil"
)

// Field names an order may carry, in precedence order
const (
	fieldTimestamp        = "timestamp"
	fieldTime             = "time"
	fieldCreatedTimestamp = "createdTimestamp"
	fieldPrice            = "price"
	fieldUnitPrice        = "unit_price"
)

// rawOrder keeps every variant field the upstream has been seen to send
type rawOrder struct {
	Timestamp        json.RawMessage `json:"timestamp"`
	Time             json.RawMessage `json:"time"`
	CreatedTimestamp json.RawMessage `json:"createdTimestamp"`
	Quantity         *float64        `json:"quantity"`
	Price            *float64        `json:"price"`
	UnitPrice        *float64        `json:"unit_price"`
}

// toDomain resolves the variant fields: timestamp > time > createdTimestamp,
// price > unit_price. The first non-empty timestamp field wins.
func (r rawOrder) toDomain(n *timeutil.Normalizer) domain.PlayerOrder {
	var o domain.PlayerOrder

	if r.Quantity != nil {
		o.Quantity = *r.Quantity
	}

	switch {
	case r.Price != nil:
		o.Price, o.PriceSource = *r.Price, fieldPrice
	case r.UnitPrice != nil:
		o.Price, o.PriceSource = *r.UnitPrice, fieldUnitPrice
	}

	candidates := []struct {
		name string
		raw  json.RawMessage
	}{
		{fieldTimestamp, r.Timestamp},
		{fieldTime, r.Time},
		{fieldCreatedTimestamp, r.CreatedTimestamp},
	}
	for _, c := range candidates {
		text, ok := rawText(c.raw)
		if !ok {
			continue
		}
		o.TimestampSource = c.name
		o.RawTimestamp = text
		if ts, err := parseOrderTime(text, n); err == nil {
			o.Timestamp = ts
			o.TimestampValid = true
		}
		break
	}

	return o
}

// rawText returns the field as text; absent, null and empty values report false
func rawText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	// Numeric epochs are kept verbatim
	return string(raw), true
}

// parseOrderTime accepts ISO-8601 text or unix epochs in seconds or milliseconds
func parseOrderTime(text string, n *timeutil.Normalizer) (time.Time, error) {
	if epoch, err := strconv.ParseFloat(text, 64); err == nil {
		if epoch > 1e12 {
			return time.UnixMilli(int64(epoch)).In(n.Location()), nil
		}
		return time.Unix(int64(epoch), 0).In(n.Location()), nil
	}
	return n.Parse(text)
}
