// Package config loads the pepfoot settings file.
package config

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/fmod"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
)

// EnvVar names the settings file when --config is not given.
const EnvVar = "PEPFOOT_CONFIG"

// Config holds user settings. Zero fields are filled with the built-in defaults.
type Config struct {
	// Enzymes extends or overrides the built-in name -> cleavage rule table.
	Enzymes map[string]string `yaml:"enzymes"`
	// Modifications are added to the built-in table; same names replace it.
	Modifications []core.Modification `yaml:"modifications"`
	// ModificationsCSV is an optional CSV file of further modifications.
	ModificationsCSV string `yaml:"modifications_csv"`

	Tolerance   predict.Tolerance    `yaml:"tolerance"`
	Integration IntegrationConfig    `yaml:"integration"`
	Analysis    AnalysisConfig       `yaml:"analysis"`
	Isotopes    core.EnvelopeOptions `yaml:"isotopes"`
}

// IntegrationConfig controls chromatogram and area integration.
type IntegrationConfig struct {
	Method  integrate.Method `yaml:"method"`
	MSLevel int              `yaml:"ms_level"`
}

// AnalysisConfig controls group comparison.
type AnalysisConfig struct {
	Alpha     float64 `yaml:"alpha"`
	Threshold float64 `yaml:"threshold"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	enzymes := maps.Clone(digest.DefaultEnzymes)
	maps.Copy(enzymes, c.Enzymes)
	c.Enzymes = enzymes

	if c.Tolerance.Unit == "" {
		c.Tolerance = predict.Tolerance{Value: 5, Unit: predict.UnitMMU}
	}
	if c.Integration.Method == "" {
		c.Integration.Method = integrate.Trapezoid
	}
	if c.Integration.MSLevel <= 0 {
		c.Integration.MSLevel = 1
	}
	if c.Analysis.Alpha <= 0 {
		c.Analysis.Alpha = fmod.DefaultAlpha
	}
	if c.Analysis.Threshold <= 0 {
		c.Analysis.Threshold = fmod.DefaultThreshold
	}
	if c.Isotopes.Threshold <= 0 {
		c.Isotopes.Threshold = core.DefaultIsotopeThreshold
	}
	if c.Isotopes.MaxPeaks <= 0 {
		c.Isotopes.MaxPeaks = core.DefaultMaxIsotopePeaks
	}
}

// Validate checks the settings after defaults are applied.
func (c *Config) Validate() error {
	if err := c.Tolerance.Validate(); err != nil {
		return fmt.Errorf("tolerance: %w", err)
	}
	if _, err := integrate.ParseMethod(string(c.Integration.Method)); err != nil {
		return err
	}
	if c.Analysis.Alpha >= 1 {
		return fmt.Errorf("alpha %g must be below 1", c.Analysis.Alpha)
	}
	for name, rule := range c.Enzymes {
		if _, err := digest.NewEnzyme(name, rule); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfigFile reads a YAML settings file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path, or the file named by $PEPFOOT_CONFIG when path is empty.
// Without either the built-in defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadConfigFile(path)
}

// ModDatabase returns the built-in modifications extended by the configured
// ones and the optional CSV file.
func (c *Config) ModDatabase() (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()
	for _, mod := range c.Modifications {
		if err := db.Add(mod); err != nil {
			return nil, fmt.Errorf("modification %s: %w", mod.Name, err)
		}
	}
	if c.ModificationsCSV != "" {
		file, err := os.Open(c.ModificationsCSV)
		if err != nil {
			return nil, fmt.Errorf("open modifications: %w", err)
		}
		defer file.Close()
		if err := db.LoadFromCSV(file); err != nil {
			return nil, fmt.Errorf("load modifications %s: %w", c.ModificationsCSV, err)
		}
	}
	return db, nil
}

// Enzyme compiles the named enzyme from the configured table.
func (c *Config) Enzyme(name string) (*digest.Enzyme, error) {
	return digest.LookupEnzyme(name, c.Enzymes)
}

// FmodOptions returns the comparison options.
func (c *Config) FmodOptions() fmod.Options {
	return fmod.Options{Alpha: c.Analysis.Alpha, Threshold: c.Analysis.Threshold}
}

// Marshal renders the settings as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
