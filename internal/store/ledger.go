package store

import (
	"context"
	"fmt"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

// Transactions returns the full transactions table. The pipeline filters and
// indexes in memory; no filtering is pushed down.
func (s *Store) Transactions(ctx context.Context) ([]pipeline.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project, id, user_id, created_at, amount, currency, success
		FROM transactions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Transaction
	for rows.Next() {
		var tx pipeline.Transaction
		if err := rows.Scan(&tx.Project, &tx.ID, &tx.UserID, &tx.CreatedAt, &tx.Amount, &tx.Currency, &tx.Success); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return out, nil
}

// ExchangeRates returns the full exchange_rates table in a stable order so
// duplicate resolution downstream stays deterministic.
func (s *Store) ExchangeRates(ctx context.Context) ([]pipeline.ExchangeRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT currency_from, currency_to, exchange_rate, currency_date
		FROM exchange_rates
		ORDER BY currency_from, currency_to, currency_date`)
	if err != nil {
		return nil, fmt.Errorf("query exchange rates: %w", err)
	}
	defer rows.Close()

	var out []pipeline.ExchangeRate
	for rows.Next() {
		var r pipeline.ExchangeRate
		if err := rows.Scan(&r.CurrencyFrom, &r.CurrencyTo, &r.Rate, &r.CurrencyDate); err != nil {
			return nil, fmt.Errorf("scan exchange rate: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read exchange rates: %w", err)
	}
	return out, nil
}
