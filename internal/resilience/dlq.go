package resilience

import (
	"encoding/json"
	"math"
	"time"
)

// Error classes recorded on dead-letter entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DLQEntry is a company assessment that failed during a batch or drift run
// and can be replayed later. Input holds the company input document exactly
// as it was submitted.
type DLQEntry struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	Operation    string          `json:"operation"` // "assess" or "drift"
	Input        json.RawMessage `json:"input,omitempty"`
	Error        string          `json:"error"`
	ErrorType    string          `json:"error_type"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	NextRetryAt  time.Time       `json:"next_retry_at"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFailedAt time.Time       `json:"last_failed_at"`
}

// DLQFilter narrows a dequeue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	Operation string `json:"operation,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether the entry has replays left.
func (e *DLQEntry) CanRetry() bool {
	return e.ErrorType == ErrorTransient && e.RetryCount < e.MaxRetries
}

// ClassifyError buckets err for the dead-letter queue.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}

// NextRetryDelay doubles from five minutes per replay, capped at a day.
func NextRetryDelay(retryCount int) time.Duration {
	d := 5 * time.Minute * time.Duration(math.Pow(2, float64(retryCount)))
	if d <= 0 || d > 24*time.Hour {
		return 24 * time.Hour
	}
	return d
}
