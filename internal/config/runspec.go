package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/classical"
	"github.com/aristath/foresight/internal/modules/pipeline"
	"github.com/aristath/foresight/internal/modules/preprocess"
	"github.com/aristath/foresight/internal/modules/scenario"
	"github.com/aristath/foresight/internal/modules/sequence"
	"github.com/aristath/foresight/internal/modules/stationarity"
)

// RunSpec is the YAML description of one pipeline run: which assets to
// forecast, where to cut train from test, and the per-stage knobs.
type RunSpec struct {
	Symbols []string `yaml:"symbols"`

	Split struct {
		Date     string  `yaml:"date"`
		Fraction float64 `yaml:"fraction"`
	} `yaml:"split"`

	Preprocess struct {
		MaxFillDays int  `yaml:"max_fill_days"`
		UseLog      *bool `yaml:"use_log"`
	} `yaml:"preprocess"`

	ADF struct {
		Significance float64 `yaml:"significance"`
		MaxLag       int     `yaml:"max_lag"`
	} `yaml:"adf"`

	ARIMA struct {
		MaxP    int `yaml:"max_p"`
		MaxQ    int `yaml:"max_q"`
		MaxIter int `yaml:"max_iter"`
	} `yaml:"arima"`

	GARCH struct {
		Family  string `yaml:"family"`
		MaxIter int    `yaml:"max_iter"`
	} `yaml:"garch"`

	LSTM struct {
		Window       int     `yaml:"window"`
		Hidden       int     `yaml:"hidden"`
		Epochs       int     `yaml:"epochs"`
		BatchSize    int     `yaml:"batch_size"`
		LearningRate float64 `yaml:"learning_rate"`
		ValFraction  float64 `yaml:"val_fraction"`
		Patience     int     `yaml:"patience"`
		Seed         uint64  `yaml:"seed"`
	} `yaml:"lstm"`

	Simulation struct {
		Draws int    `yaml:"draws"`
		Seed  uint64 `yaml:"seed"`
		Mode  string `yaml:"mode"`
	} `yaml:"simulation"`

	Families    []string `yaml:"families"`
	FitTimeout  string   `yaml:"fit_timeout"`
	MinTrain    int      `yaml:"min_train"`
	MaxParallel int      `yaml:"max_parallel"`
}

// LoadRunSpec reads and validates a YAML run specification.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run spec: %w", err)
	}
	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse run spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the spec for problems that should fail before any
// data is touched.
func (s *RunSpec) Validate() error {
	if len(s.Symbols) == 0 {
		return &domain.ConfigError{Field: "symbols", Reason: "no symbols listed"}
	}
	if s.Split.Date == "" && s.Split.Fraction == 0 {
		return &domain.ConfigError{Field: "split", Reason: "neither date nor fraction given"}
	}
	if s.Split.Date != "" {
		if _, err := time.Parse("2006-01-02", s.Split.Date); err != nil {
			return &domain.ConfigError{Field: "split.date", Reason: err.Error()}
		}
	}
	if s.Split.Fraction < 0 || s.Split.Fraction >= 1 {
		return &domain.ConfigError{Field: "split.fraction", Reason: fmt.Sprintf("%.3f outside (0,1)", s.Split.Fraction)}
	}
	if s.FitTimeout != "" {
		if _, err := time.ParseDuration(s.FitTimeout); err != nil {
			return &domain.ConfigError{Field: "fit_timeout", Reason: err.Error()}
		}
	}
	for _, f := range s.Families {
		switch domain.ModelFamily(f) {
		case domain.FamilyTrend, domain.FamilyARIMA, domain.FamilyGARCH, domain.FamilyLSTM:
		default:
			return &domain.ConfigError{Field: "families", Reason: "unknown family " + f}
		}
	}
	switch s.Simulation.Mode {
	case "", string(domain.SimIndependent), string(domain.SimCorrelated):
	default:
		return &domain.ConfigError{Field: "simulation.mode", Reason: "unknown mode " + s.Simulation.Mode}
	}
	return nil
}

// SplitDate returns the parsed cut date, zero when the spec uses a
// fraction instead.
func (s *RunSpec) SplitDate() time.Time {
	if s.Split.Date == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", s.Split.Date)
	return t
}

// PipelineConfig maps the spec onto the orchestrator configuration.
func (s *RunSpec) PipelineConfig() pipeline.Config {
	useLog := true
	if s.Preprocess.UseLog != nil {
		useLog = *s.Preprocess.UseLog
	}
	maxFill := s.Preprocess.MaxFillDays
	if maxFill == 0 {
		maxFill = 3
	}

	var timeout time.Duration
	if s.FitTimeout != "" {
		timeout, _ = time.ParseDuration(s.FitTimeout)
	}

	families := make([]domain.ModelFamily, len(s.Families))
	for i, f := range s.Families {
		families[i] = domain.ModelFamily(f)
	}

	return pipeline.Config{
		Preprocess: preprocess.Config{MaxFillDays: maxFill},
		ADF: stationarity.Config{
			Significance: s.ADF.Significance,
			MaxLag:       s.ADF.MaxLag,
		},
		ARIMA: classical.ARIMAConfig{
			MaxP:    s.ARIMA.MaxP,
			MaxQ:    s.ARIMA.MaxQ,
			MaxIter: s.ARIMA.MaxIter,
		},
		GARCH: classical.GARCHConfig{
			Family:  classical.GARCHFamily(s.GARCH.Family),
			MaxIter: s.GARCH.MaxIter,
		},
		LSTM: sequence.Config{
			Window:       s.LSTM.Window,
			Hidden:       s.LSTM.Hidden,
			Epochs:       s.LSTM.Epochs,
			BatchSize:    s.LSTM.BatchSize,
			LearningRate: s.LSTM.LearningRate,
			ValFraction:  s.LSTM.ValFraction,
			Patience:     s.LSTM.Patience,
			Seed:         s.LSTM.Seed,
		},
		Scenario: scenario.Config{
			Draws: s.Simulation.Draws,
			Seed:  s.Simulation.Seed,
			Mode:  domain.SimulationMode(s.Simulation.Mode),
		},
		UseLog:      useLog,
		Families:    families,
		FitTimeout:  timeout,
		MinTrain:    s.MinTrain,
		MaxParallel: s.MaxParallel,
	}
}
