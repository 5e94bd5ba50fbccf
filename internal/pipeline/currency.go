package pipeline

import "time"

// RateTable resolves currency conversion against date-keyed exchange rates.
// Lookups require an exact date match; there is no nearest-date fallback.
type RateTable struct {
	target string
	rates  map[rateKey]float64
}

type rateKey struct {
	from string
	date string
}

// NewRateTable indexes rate rows converting into the target currency. Rows
// converting into other currencies are ignored. When the input carries
// duplicate (from, date) rows the first one wins, keeping results
// deterministic for a given load order.
func NewRateTable(target string, rows []ExchangeRate) *RateTable {
	t := &RateTable{target: target, rates: make(map[rateKey]float64, len(rows))}
	for _, r := range rows {
		if r.CurrencyTo != target {
			continue
		}
		k := rateKey{from: r.CurrencyFrom, date: dayKey(r.CurrencyDate)}
		if _, ok := t.rates[k]; ok {
			continue
		}
		t.rates[k] = r.Rate
	}
	return t
}

// Convert returns amount expressed in the table's target currency. An amount
// already in the target currency passes through unchanged. When no rate
// exists for the exact transaction date the converted amount is zero and ok
// is false; callers decide how loudly to report the miss.
func (t *RateTable) Convert(amount float64, currency string, txDate time.Time) (float64, bool) {
	if currency == t.target {
		return amount, true
	}
	rate, ok := t.rates[rateKey{from: currency, date: dayKey(txDate)}]
	if !ok {
		return 0, false
	}
	return amount * rate, true
}
