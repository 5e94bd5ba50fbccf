package pipeline

import (
	"errors"
	"time"
)

// ErrMalformedRow marks source data that was readable but carried unusable
// field values (bad timestamps, non-numeric ids). Unlike an unavailable
// source, a malformed row always fails the project pipeline so data is never
// silently dropped.
var ErrMalformedRow = errors.New("malformed source row")

// Session is one user browsing session inside a project. CreatedAt and
// UpdatedAt bound the session window; UpdatedAt also drives the incremental
// filter and the transaction-day join.
type Session struct {
	ID             string
	UserID         int64
	ProjectName    string
	PageName       string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastActivityAt time.Time
}

// Event is a single user action. Only the user and timestamp take part in
// session attribution.
type Event struct {
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// Transaction is one row of the financial ledger.
type Transaction struct {
	Project   string
	ID        int64
	UserID    int64
	CreatedAt time.Time
	Amount    float64
	Currency  string
	Success   bool
}

// ExchangeRate is a daily point-in-time conversion rate, keyed by
// (CurrencyFrom, CurrencyTo, CurrencyDate).
type ExchangeRate struct {
	CurrencyFrom string
	CurrencyTo   string
	Rate         float64
	CurrencyDate time.Time
}

// EnrichedSession is the denormalized output row. The first-transaction
// fields are nil exactly when the session has no successful transactions on
// its closing day.
type EnrichedSession struct {
	SessionID                      string
	ProjectName                    string
	UserID                         int64
	PageName                       string
	IsActive                       bool
	SessionStartTime               time.Time
	SessionEndTime                 time.Time
	LastActivityTime               time.Time
	EventsCount                    int
	TransactionsSumUSD             float64
	FirstSuccessfulTransactionTime *time.Time
	FirstSuccessfulTransactionUSD  *float64
}

// dayKey collapses a timestamp to its calendar date for day-keyed joins.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
