package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// BacktestConfig is the run configuration for BacktestEngineV1.
type BacktestConfig struct {
	InitialCapital   float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital for the backtest in INR,minimum=0"`
	RiskPerTrade     float64 `yaml:"risk_per_trade" json:"risk_per_trade" validate:"gt=0,lte=0.1" jsonschema:"title=Risk Per Trade,description=Fraction of capital risked per trade"`
	CommissionRate   float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0" jsonschema:"title=Commission Rate,description=Commission as a fraction of traded notional per leg"`
	EntrySlippagePct float64 `yaml:"entry_slippage_pct" json:"entry_slippage_pct" validate:"gte=0" jsonschema:"title=Entry Slippage,description=Adverse entry fill assumption as a fraction of price"`
	ExitSlippagePct  float64 `yaml:"exit_slippage_pct" json:"exit_slippage_pct" validate:"gte=0" jsonschema:"title=Exit Slippage,description=Adverse exit fill assumption as a fraction of price"`

	// MaxDays is capped at 60: the intraday history the vendors serve
	// does not reach further back.
	MaxDays    int `yaml:"max_days" json:"max_days" validate:"gt=0,lte=60" jsonschema:"title=Max Days,description=Trailing calendar days of history per symbol,maximum=60"`
	MaxSymbols int `yaml:"max_symbols" json:"max_symbols" validate:"gte=0" jsonschema:"title=Max Symbols,description=Optional cap on symbols processed; 0 means no cap"`

	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"title=Fetch Timeout,description=Bounded timeout for one provider fetch"`
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"cache_ttl" jsonschema:"title=Cache TTL,description=How long fetched bars stay cached"`

	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the backtest period"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest period"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestConfig:
// durations come in as strings and the time bounds as nullable pointers.
func (c *BacktestConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		InitialCapital   *float64   `yaml:"initial_capital"`
		RiskPerTrade     *float64   `yaml:"risk_per_trade"`
		CommissionRate   *float64   `yaml:"commission_rate"`
		EntrySlippagePct *float64   `yaml:"entry_slippage_pct"`
		ExitSlippagePct  *float64   `yaml:"exit_slippage_pct"`
		MaxDays          *int       `yaml:"max_days"`
		MaxSymbols       *int       `yaml:"max_symbols"`
		FetchTimeout     string     `yaml:"fetch_timeout"`
		CacheTTL         string     `yaml:"cache_ttl"`
		StartTime        *time.Time `yaml:"start_time"`
		EndTime          *time.Time `yaml:"end_time"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	*c = DefaultConfig()

	if raw.InitialCapital != nil {
		c.InitialCapital = *raw.InitialCapital
	}

	if raw.RiskPerTrade != nil {
		c.RiskPerTrade = *raw.RiskPerTrade
	}

	if raw.CommissionRate != nil {
		c.CommissionRate = *raw.CommissionRate
	}

	if raw.EntrySlippagePct != nil {
		c.EntrySlippagePct = *raw.EntrySlippagePct
	}

	if raw.ExitSlippagePct != nil {
		c.ExitSlippagePct = *raw.ExitSlippagePct
	}

	if raw.MaxDays != nil {
		c.MaxDays = *raw.MaxDays
	}

	if raw.MaxSymbols != nil {
		c.MaxSymbols = *raw.MaxSymbols
	}

	if raw.FetchTimeout != "" {
		timeout, err := time.ParseDuration(raw.FetchTimeout)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid fetch_timeout %q", raw.FetchTimeout)
		}

		c.FetchTimeout = timeout
	}

	if raw.CacheTTL != "" {
		ttl, err := time.ParseDuration(raw.CacheTTL)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid cache_ttl %q", raw.CacheTTL)
		}

		c.CacheTTL = ttl
	}

	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	return nil
}

// Validate validates the configuration.
func (c *BacktestConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if c.FetchTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "fetch_timeout must be positive")
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time precedes start_time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestConfig.
func (c *BacktestConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration string, e.g. 15s",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for the intraday backtest engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestConfig.
func (c *BacktestConfig) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a BacktestConfig with the documented defaults.
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:   100000,
		RiskPerTrade:     0.01,
		CommissionRate:   0.0005,
		EntrySlippagePct: 0.0005,
		ExitSlippagePct:  0.001,
		MaxDays:          30,
		MaxSymbols:       0,
		FetchTimeout:     15 * time.Second,
		CacheTTL:         30 * time.Minute,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
	}
}
