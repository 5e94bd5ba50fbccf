package pipeline

import (
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestEnrich_NoTransactions(t *testing.T) {
	en := NewEnricher(NewTransactionIndex(nil), NewRateTable("USD", nil), testLogger())

	got := en.Enrich(Session{UserID: 7, UpdatedAt: day(2024, 1, 1).Add(10 * time.Hour)})

	if got.SumUSD != 0 {
		t.Errorf("expected zero sum, got %f", got.SumUSD)
	}
	if got.FirstTxTime != nil || got.FirstTxUSD != nil {
		t.Error("expected nil first-transaction fields when no transactions match")
	}
}

func TestEnrich_SumAndFirstConsistency(t *testing.T) {
	// The worked scenario: 50 EUR at 10:10 and 20 USD at 10:20, both
	// successful, EUR->USD 1.1 on the session day.
	txTime1 := time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC)
	txTime2 := time.Date(2024, 1, 1, 10, 20, 0, 0, time.UTC)

	txs := NewTransactionIndex([]Transaction{
		{ID: 2, UserID: 7, CreatedAt: txTime2, Amount: 20, Currency: "USD", Success: true},
		{ID: 1, UserID: 7, CreatedAt: txTime1, Amount: 50, Currency: "EUR", Success: true},
	})
	rates := NewRateTable("USD", []ExchangeRate{
		{CurrencyFrom: "EUR", CurrencyTo: "USD", Rate: 1.1, CurrencyDate: day(2024, 1, 1)},
	})
	en := NewEnricher(txs, rates, testLogger())

	got := en.Enrich(Session{
		UserID:    7,
		CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
	})

	if !approx(got.SumUSD, 75.0) {
		t.Errorf("expected sum ~75.0, got %f", got.SumUSD)
	}
	if got.FirstTxTime == nil || !got.FirstTxTime.Equal(txTime1) {
		t.Errorf("expected first tx at %v, got %v", txTime1, got.FirstTxTime)
	}
	if got.FirstTxUSD == nil || !approx(*got.FirstTxUSD, 55.0) {
		t.Errorf("expected first tx amount ~55.0, got %v", got.FirstTxUSD)
	}
	if en.RateMisses() != 0 {
		t.Errorf("expected no rate misses, got %d", en.RateMisses())
	}
}

func TestEnrich_FailedTransactionsExcluded(t *testing.T) {
	txTime := time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC)
	txs := NewTransactionIndex([]Transaction{
		{ID: 1, UserID: 7, CreatedAt: txTime, Amount: 100, Currency: "USD", Success: false},
	})
	en := NewEnricher(txs, NewRateTable("USD", nil), testLogger())

	got := en.Enrich(Session{UserID: 7, UpdatedAt: txTime.Add(time.Hour)})

	if got.SumUSD != 0 || got.FirstTxTime != nil {
		t.Errorf("failed transaction must not contribute: %+v", got)
	}
}

func TestEnrich_OtherDayExcluded(t *testing.T) {
	txs := NewTransactionIndex([]Transaction{
		{ID: 1, UserID: 7, CreatedAt: time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC), Amount: 100, Currency: "USD", Success: true},
	})
	en := NewEnricher(txs, NewRateTable("USD", nil), testLogger())

	// Session closes on Jan 1; the transaction happened on Jan 2.
	got := en.Enrich(Session{UserID: 7, UpdatedAt: time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC)})

	if got.SumUSD != 0 || got.FirstTxTime != nil {
		t.Errorf("next-day transaction must not contribute: %+v", got)
	}
}

func TestEnrich_MissingRateCountsZeroAndTallies(t *testing.T) {
	txTime := time.Date(2024, 1, 1, 10, 10, 0, 0, time.UTC)
	txs := NewTransactionIndex([]Transaction{
		{ID: 1, UserID: 7, CreatedAt: txTime, Amount: 50, Currency: "EUR", Success: true},
		{ID: 2, UserID: 7, CreatedAt: txTime.Add(time.Minute), Amount: 20, Currency: "USD", Success: true},
	})
	// No EUR rate at all.
	en := NewEnricher(txs, NewRateTable("USD", nil), testLogger())

	got := en.Enrich(Session{UserID: 7, UpdatedAt: txTime.Add(time.Hour)})

	if !approx(got.SumUSD, 20.0) {
		t.Errorf("expected sum 20.0 (EUR tx counted as zero), got %f", got.SumUSD)
	}
	// The first transaction is still the EUR one, with its converted
	// amount of zero.
	if got.FirstTxTime == nil || !got.FirstTxTime.Equal(txTime) {
		t.Errorf("expected first tx at %v, got %v", txTime, got.FirstTxTime)
	}
	if got.FirstTxUSD == nil || *got.FirstTxUSD != 0 {
		t.Errorf("expected first tx amount 0, got %v", got.FirstTxUSD)
	}
	if en.RateMisses() != 1 {
		t.Errorf("expected 1 rate miss, got %d", en.RateMisses())
	}
}

func TestTransactionIndex_OrdersByCreatedAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	txs := NewTransactionIndex([]Transaction{
		{ID: 3, UserID: 7, CreatedAt: base.Add(2 * time.Hour), Amount: 3, Currency: "USD", Success: true},
		{ID: 1, UserID: 7, CreatedAt: base, Amount: 1, Currency: "USD", Success: true},
		{ID: 2, UserID: 7, CreatedAt: base.Add(time.Hour), Amount: 2, Currency: "USD", Success: true},
	})

	list := txs.OnDay(7, base)
	if len(list) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(list))
	}
	for i, want := range []int64{1, 2, 3} {
		if list[i].ID != want {
			t.Errorf("position %d: expected tx %d, got %d", i, want, list[i].ID)
		}
	}
}
