package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
)

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validSpec = `
symbols: [AAPL, MSFT]
split:
  date: "2024-06-03"
preprocess:
  max_fill_days: 3
  use_log: true
arima:
  max_p: 2
  max_q: 2
garch:
  family: garch
lstm:
  window: 20
  epochs: 100
  seed: 42
simulation:
  draws: 1000
  seed: 42
  mode: independent
families: [trend, arima, garch, lstm]
fit_timeout: 2m
`

func TestLoadRunSpec(t *testing.T) {
	spec, err := LoadRunSpec(writeSpec(t, validSpec))
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, spec.Symbols)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), spec.SplitDate())

	cfg := spec.PipelineConfig()
	require.True(t, cfg.UseLog)
	require.Equal(t, 3, cfg.Preprocess.MaxFillDays)
	require.Equal(t, 2, cfg.ARIMA.MaxP)
	require.Equal(t, 20, cfg.LSTM.Window)
	require.Equal(t, uint64(42), cfg.Scenario.Seed)
	require.Equal(t, 1000, cfg.Scenario.Draws)
	require.Equal(t, 2*time.Minute, cfg.FitTimeout)
	require.Len(t, cfg.Families, 4)
}

func TestRunSpecDefaults(t *testing.T) {
	spec, err := LoadRunSpec(writeSpec(t, "symbols: [AAA]\nsplit:\n  fraction: 0.9\n"))
	require.NoError(t, err)

	cfg := spec.PipelineConfig()
	require.True(t, cfg.UseLog)
	require.Equal(t, 3, cfg.Preprocess.MaxFillDays)
	require.True(t, spec.SplitDate().IsZero())
	require.Equal(t, domain.SimulationMode(""), cfg.Scenario.Mode)
}

func TestRunSpecValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no symbols", "split:\n  fraction: 0.9\n"},
		{"no split", "symbols: [AAA]\n"},
		{"bad date", "symbols: [AAA]\nsplit:\n  date: \"03-06-2024\"\n"},
		{"bad fraction", "symbols: [AAA]\nsplit:\n  fraction: 1.5\n"},
		{"bad family", "symbols: [AAA]\nsplit:\n  fraction: 0.9\nfamilies: [prophet]\n"},
		{"bad mode", "symbols: [AAA]\nsplit:\n  fraction: 0.9\nsimulation:\n  mode: quantum\n"},
		{"bad timeout", "symbols: [AAA]\nsplit:\n  fraction: 0.9\nfit_timeout: sometime\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRunSpec(writeSpec(t, tc.yaml))
			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadRunSpecMissingFile(t *testing.T) {
	_, err := LoadRunSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
