package store

import (
	"context"
	"fmt"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

// ReplaceExchangeRates reloads the exchange_rates table from the given rows,
// mirroring the replace semantics of the upstream CSV feed.
func (s *Store) ReplaceExchangeRates(ctx context.Context, rates []pipeline.ExchangeRate) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exchange_rates`); err != nil {
		return 0, fmt.Errorf("clear exchange rates: %w", err)
	}
	for _, r := range rates {
		_, err := tx.Exec(ctx, `
			INSERT INTO exchange_rates (currency_from, currency_to, exchange_rate, currency_date)
			VALUES ($1, $2, $3, $4)`,
			r.CurrencyFrom, r.CurrencyTo, r.Rate, r.CurrencyDate,
		)
		if err != nil {
			return 0, fmt.Errorf("insert rate %s/%s: %w", r.CurrencyFrom, r.CurrencyTo, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rates), nil
}

// ReplaceTransactions reloads the transactions table from the given rows.
func (s *Store) ReplaceTransactions(ctx context.Context, txs []pipeline.Transaction) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transactions`); err != nil {
		return 0, fmt.Errorf("clear transactions: %w", err)
	}
	for _, t := range txs {
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (project, id, user_id, created_at, amount, currency, success)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.Project, t.ID, t.UserID, t.CreatedAt, t.Amount, t.Currency, t.Success,
		)
		if err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(txs), nil
}
