package events

// EventData is implemented by every event payload
type EventData interface {
	EventType() EventType
}

// HoldingOpenedData is emitted when a purchase is recorded
type HoldingOpenedData struct {
	HoldingID string  `json:"holding_id"`
	Item      string  `json:"item"`
	Quantity  float64 `json:"quantity"`
	BuyPrice  float64 `json:"buy_price"`
}

func (d *HoldingOpenedData) EventType() EventType { return HoldingOpened }

// HoldingClosedData is emitted when a holding is sold
type HoldingClosedData struct {
	HoldingID string  `json:"holding_id"`
	TradeID   string  `json:"trade_id"`
	Item      string  `json:"item"`
	Quantity  float64 `json:"quantity"`
	SalePrice float64 `json:"sale_price"`
	SaleValue float64 `json:"sale_value"`
}

func (d *HoldingClosedData) EventType() EventType { return HoldingClosed }

// RecordDeletedData is emitted when a holding or trade is removed without a sale
type RecordDeletedData struct {
	ID   string    `json:"id"`
	Kind EventType `json:"kind"`
}

func (d *RecordDeletedData) EventType() EventType { return d.Kind }

// AllocationComputedData summarises an optimizer run
type AllocationComputedData struct {
	Weights            map[string]float64 `json:"weights"`
	RunID              string             `json:"run_id"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	RiskAversion       float64            `json:"risk_aversion"`
}

func (d *AllocationComputedData) EventType() EventType { return AllocationComputed }

// PricesSyncedData reports a scheduled history refresh
type PricesSyncedData struct {
	Failed []string `json:"failed,omitempty"`
	Items  int      `json:"items"`
	Points int      `json:"points"`
}

func (d *PricesSyncedData) EventType() EventType { return PricesSynced }

// BackupCompletedData reports a finished ledger backup
type BackupCompletedData struct {
	Path      string `json:"path"`
	ObjectKey string `json:"object_key,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Uploaded  bool   `json:"uploaded"`
}

func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData carries a failure surfaced to subscribers
type ErrorEventData struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
