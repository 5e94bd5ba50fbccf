package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kestrel-data/kestrel/internal/pipeline"
)

// Session and event exports carry timestamps in one of two layouts; some
// feeds truncate to the date.
const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// ParseError marks a readable file with an unusable row. It matches
// pipeline.ErrMalformedRow so the extractor fails the project instead of
// silently dropping data.
type ParseError struct {
	File  string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s:%d: field %q: %v", e.File, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == pipeline.ErrMalformedRow }

// Dir reads per-project session and event CSV exports from a data directory
// laid out as <root>/<project>/{user_sessions.csv,events.csv}.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Sessions(ctx context.Context, project string) ([]pipeline.Session, error) {
	rows, err := readCSV(filepath.Join(d.root, project, "user_sessions.csv"))
	if err != nil {
		return nil, err
	}
	sessions := make([]pipeline.Session, 0, len(rows))
	for _, r := range rows {
		s, err := parseSession(r)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (d *Dir) Events(ctx context.Context, project string) ([]pipeline.Event, error) {
	rows, err := readCSV(filepath.Join(d.root, project, "events.csv"))
	if err != nil {
		return nil, err
	}
	events := make([]pipeline.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := parseEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReadTransactions parses a transactions CSV export for ingestion into the
// ledger. Columns: project, id, user_id, created_at, amount, currency,
// success.
func ReadTransactions(path string) ([]pipeline.Transaction, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	txs := make([]pipeline.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := parseTransaction(r)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ReadExchangeRates parses an exchange-rates CSV export. Columns:
// currency_from, currency_to, exchange_rate, currency_date.
func ReadExchangeRates(path string) ([]pipeline.ExchangeRate, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	rates := make([]pipeline.ExchangeRate, 0, len(rows))
	for _, r := range rows {
		rate, err := parseExchangeRate(r)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// row is one CSV record with fields resolved by header name.
type row struct {
	file   string
	line   int
	fields map[string]string
}

func readCSV(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &ParseError{File: path, Line: 1, Err: err}
	}

	var rows []row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{File: path, Line: line, Err: err}
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				fields[name] = rec[i]
			}
		}
		rows = append(rows, row{file: path, line: line, fields: fields})
	}
	return rows, nil
}

func parseSession(r row) (pipeline.Session, error) {
	var s pipeline.Session
	var err error

	s.ID = r.fields["id"]
	if s.ID == "" {
		return s, &ParseError{File: r.file, Line: r.line, Field: "id", Err: errors.New("empty value")}
	}
	if s.UserID, err = parseInt(r, "user_id"); err != nil {
		return s, err
	}
	s.PageName = r.fields["page_name"]
	if s.Active, err = parseBool(r, "active"); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime(r, "created_at"); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(r, "updated_at"); err != nil {
		return s, err
	}
	if s.LastActivityAt, err = parseTime(r, "last_activity_at"); err != nil {
		return s, err
	}
	return s, nil
}

func parseEvent(r row) (pipeline.Event, error) {
	var ev pipeline.Event
	var err error

	if ev.UserID, err = parseInt(r, "user_id"); err != nil {
		return ev, err
	}
	if ev.CreatedAt, err = parseTime(r, "created_at"); err != nil {
		return ev, err
	}
	ev.Name = r.fields["name"]
	return ev, nil
}

func parseTransaction(r row) (pipeline.Transaction, error) {
	var tx pipeline.Transaction
	var err error

	tx.Project = r.fields["project"]
	if tx.ID, err = parseInt(r, "id"); err != nil {
		return tx, err
	}
	if tx.UserID, err = parseInt(r, "user_id"); err != nil {
		return tx, err
	}
	if tx.CreatedAt, err = parseTime(r, "created_at"); err != nil {
		return tx, err
	}
	if tx.Amount, err = parseFloat(r, "amount"); err != nil {
		return tx, err
	}
	tx.Currency = r.fields["currency"]
	if tx.Success, err = parseBool(r, "success"); err != nil {
		return tx, err
	}
	return tx, nil
}

func parseExchangeRate(r row) (pipeline.ExchangeRate, error) {
	var rate pipeline.ExchangeRate
	var err error

	rate.CurrencyFrom = r.fields["currency_from"]
	rate.CurrencyTo = r.fields["currency_to"]
	if rate.Rate, err = parseFloat(r, "exchange_rate"); err != nil {
		return rate, err
	}
	if rate.CurrencyDate, err = parseTime(r, "currency_date"); err != nil {
		return rate, err
	}
	return rate, nil
}

func parseTime(r row, field string) (time.Time, error) {
	v := r.fields[field]
	if t, err := time.ParseInLocation(timeLayout, v, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, v, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, &ParseError{File: r.file, Line: r.line, Field: field, Err: fmt.Errorf("unrecognized timestamp %q", v)}
}

func parseInt(r row, field string) (int64, error) {
	n, err := strconv.ParseInt(r.fields[field], 10, 64)
	if err != nil {
		return 0, &ParseError{File: r.file, Line: r.line, Field: field, Err: err}
	}
	return n, nil
}

func parseFloat(r row, field string) (float64, error) {
	f, err := strconv.ParseFloat(r.fields[field], 64)
	if err != nil {
		return 0, &ParseError{File: r.file, Line: r.line, Field: field, Err: err}
	}
	return f, nil
}

func parseBool(r row, field string) (bool, error) {
	b, err := strconv.ParseBool(r.fields[field])
	if err != nil {
		return false, &ParseError{File: r.file, Line: r.line, Field: field, Err: err}
	}
	return b, nil
}
