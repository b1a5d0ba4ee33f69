package clientdata

import "time"

// TTL constants, added to the store time to calculate expires_at.
const (
	// Hourly history moves every few minutes
	TTLHistoryHour = 5 * time.Minute
	TTLHistoryDay  = 30 * time.Minute
	TTLHistoryWeek = 2 * time.Hour

	TTLPlayerOrders = 10 * time.Minute

	// Stale rows are kept this long past expiry as an outage fallback
	StaleGrace = 7 * 24 * time.Hour
)
