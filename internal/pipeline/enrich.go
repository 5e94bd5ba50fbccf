package pipeline

import (
	"log/slog"
	"sort"
	"time"
)

// TransactionIndex groups successful transactions by user and calendar day,
// sorted by creation time ascending. Failed transactions never enter the
// index.
type TransactionIndex struct {
	byUserDay map[txKey][]Transaction
}

type txKey struct {
	userID int64
	day    string
}

// NewTransactionIndex builds the index. Sorting is stable so transactions
// sharing a timestamp keep their ledger order.
func NewTransactionIndex(txs []Transaction) *TransactionIndex {
	ix := &TransactionIndex{byUserDay: make(map[txKey][]Transaction)}
	for _, tx := range txs {
		if !tx.Success {
			continue
		}
		k := txKey{userID: tx.UserID, day: dayKey(tx.CreatedAt)}
		ix.byUserDay[k] = append(ix.byUserDay[k], tx)
	}
	for k, list := range ix.byUserDay {
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
		ix.byUserDay[k] = list
	}
	return ix
}

// OnDay returns the user's successful transactions for the calendar day of t,
// ordered by creation time.
func (ix *TransactionIndex) OnDay(userID int64, t time.Time) []Transaction {
	return ix.byUserDay[txKey{userID: userID, day: dayKey(t)}]
}

// Enrichment carries the transaction metrics attached to one session. SumUSD
// is always defined; the First fields are nil when the session day has no
// successful transactions.
type Enrichment struct {
	SumUSD      float64
	FirstTxTime *time.Time
	FirstTxUSD  *float64
}

// Enricher joins sessions to the transaction ledger and normalizes amounts
// to the target currency. Not safe for concurrent use; the runner creates
// one per project over the shared read-only indexes.
type Enricher struct {
	txs    *TransactionIndex
	rates  *RateTable
	logger *slog.Logger

	rateMisses int
}

func NewEnricher(txs *TransactionIndex, rates *RateTable, logger *slog.Logger) *Enricher {
	return &Enricher{txs: txs, rates: rates, logger: logger}
}

// Enrich computes the converted transaction sum and the first-transaction
// metrics for the session's closing day. A transaction with no exchange rate
// for its exact date contributes zero to the sum; the miss is logged and
// tallied rather than failing the run.
func (e *Enricher) Enrich(s Session) Enrichment {
	var out Enrichment
	for i, tx := range e.txs.OnDay(s.UserID, s.UpdatedAt) {
		usd, ok := e.rates.Convert(tx.Amount, tx.Currency, tx.CreatedAt)
		if !ok {
			e.rateMisses++
			e.logger.Warn("no exchange rate for transaction, counting as zero",
				"transaction_id", tx.ID,
				"currency", tx.Currency,
				"date", dayKey(tx.CreatedAt),
			)
		}
		out.SumUSD += usd
		if i == 0 {
			t := tx.CreatedAt
			amount := usd
			out.FirstTxTime = &t
			out.FirstTxUSD = &amount
		}
	}
	return out
}

// RateMisses reports how many conversions fell back to zero because no rate
// row matched the transaction's exact date.
func (e *Enricher) RateMisses() int { return e.rateMisses }
