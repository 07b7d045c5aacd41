// Command import loads daily price CSVs into the price database. Each
// file holds date,price rows; the symbol is the file name without
// extension.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/logger"
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: import <csv file> [<csv file> ...]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewPriceRepository(db)
	for _, path := range flag.Args() {
		series, err := readCSV(path)
		if err != nil {
			log.Error().Str("file", path).Err(err).Msg("Skipping file")
			continue
		}
		if err := repo.Upsert(series); err != nil {
			log.Error().Str("symbol", series.Symbol).Err(err).Msg("Failed to store series")
			continue
		}
		log.Info().
			Str("symbol", series.Symbol).
			Int("observations", series.Len()).
			Msg("Imported series")
	}
}

func readCSV(path string) (domain.AssetSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.AssetSeries{}, err
	}
	defer f.Close()

	symbol := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	series := domain.AssetSeries{Symbol: symbol}

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return domain.AssetSeries{}, err
	}
	for i, rec := range records {
		if len(rec) < 2 {
			return domain.AssetSeries{}, fmt.Errorf("row %d: expected date,price", i+1)
		}
		// Skip a header row
		if i == 0 {
			if _, err := strconv.ParseFloat(rec[1], 64); err != nil {
				continue
			}
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return domain.AssetSeries{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return domain.AssetSeries{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		series.Points = append(series.Points, domain.PricePoint{Date: date, Price: price})
	}
	return series, series.Validate()
}
