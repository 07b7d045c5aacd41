package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/foresight/internal/domain"
)

// PriceRepository stores and retrieves daily price history.
type PriceRepository struct {
	db *DB
}

// NewPriceRepository creates a repository.
func NewPriceRepository(db *DB) *PriceRepository {
	return &PriceRepository{db: db}
}

const dateLayout = "2006-01-02"

// Upsert writes a full series, replacing any existing observations for
// the same symbol and dates.
func (r *PriceRepository) Upsert(series domain.AssetSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}
	return WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO prices (symbol, date, price) VALUES (?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET price = excluded.price`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, pt := range series.Points {
			if _, err := stmt.Exec(series.Symbol, pt.Date.UTC().Format(dateLayout), pt.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSeries loads the full ordered history for one symbol.
func (r *PriceRepository) GetSeries(symbol string) (domain.AssetSeries, error) {
	rows, err := r.db.Query(
		`SELECT date, price FROM prices WHERE symbol = ? ORDER BY date ASC`, symbol)
	if err != nil {
		return domain.AssetSeries{}, fmt.Errorf("failed to query prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	series := domain.AssetSeries{Symbol: symbol}
	for rows.Next() {
		var dateStr string
		var price float64
		if err := rows.Scan(&dateStr, &price); err != nil {
			return domain.AssetSeries{}, fmt.Errorf("failed to scan price row: %w", err)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return domain.AssetSeries{}, fmt.Errorf("malformed date %q for %s: %w", dateStr, symbol, err)
		}
		series.Points = append(series.Points, domain.PricePoint{Date: date, Price: price})
	}
	if err := rows.Err(); err != nil {
		return domain.AssetSeries{}, err
	}
	if series.Len() == 0 {
		return domain.AssetSeries{}, &domain.InvalidSeriesError{Symbol: symbol, Reason: "no price history stored"}
	}
	return series, nil
}

// Symbols lists every symbol with stored history.
func (r *PriceRepository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM prices ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
