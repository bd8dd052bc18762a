package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"jericho/internal/daykey"
	"jericho/internal/domain"
	"jericho/internal/goalprofile"
	"jericho/internal/metrics"
	"jericho/internal/suggest"
)

// Config models jericho.yml.
type Config struct {
	Planner struct {
		TimeZone          string             `yaml:"time_zone" json:"time_zone"`
		Classifier        string             `yaml:"classifier" json:"classifier"`
		PlanSource        string             `yaml:"plan_source" json:"plan_source"`
		HistoryWindowDays int                `yaml:"history_window_days" json:"history_window_days"`
		PatternTargets    map[string]float64 `yaml:"pattern_targets" json:"pattern_targets"`
	} `yaml:"planner" json:"planner"`
	Suggestions struct {
		Slots     []string           `yaml:"slots" json:"slots"`
		Templates []suggest.Template `yaml:"templates" json:"templates"`
	} `yaml:"suggestions" json:"suggestions"`
	Snapshots struct {
		Cap int `yaml:"cap" json:"cap"`
	} `yaml:"snapshots" json:"snapshots"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with jr config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Planner.TimeZone == "" {
		return fmt.Errorf("config.planner.time_zone is required")
	}
	if _, err := time.LoadLocation(c.Planner.TimeZone); err != nil {
		return fmt.Errorf("config.planner.time_zone %q: %w", c.Planner.TimeZone, err)
	}
	if _, err := goalprofile.New(goalprofile.Strategy(c.Planner.Classifier)); err != nil {
		return fmt.Errorf("config.planner.classifier: %w", err)
	}
	switch metrics.PlanSource(c.Planner.PlanSource) {
	case "", metrics.PlanScheduled, metrics.PlanTargets:
	default:
		return fmt.Errorf("config.planner.plan_source must be scheduled or targets")
	}
	if c.Planner.HistoryWindowDays < 1 {
		return fmt.Errorf("config.planner.history_window_days must be at least 1")
	}
	if _, err := canonicalTargets(c.Planner.PatternTargets); err != nil {
		return err
	}
	for key, v := range c.Planner.PatternTargets {
		if v < 0 {
			return fmt.Errorf("pattern target %s is negative", key)
		}
	}
	for _, s := range c.Suggestions.Slots {
		if _, err := daykey.ParseClock(s); err != nil {
			return fmt.Errorf("suggestion slot %q: %w", s, err)
		}
	}
	for i, t := range c.Suggestions.Templates {
		if t.Title == "" {
			return fmt.Errorf("suggestion template %d has empty title", i)
		}
		if _, ok := domain.ParseDomain(string(t.Domain)); !ok {
			return fmt.Errorf("suggestion template %s has unknown domain %s", t.Title, t.Domain)
		}
		if t.DurationMinutes <= 0 {
			return fmt.Errorf("suggestion template %s needs a positive duration", t.Title)
		}
	}
	if c.Snapshots.Cap < 1 {
		return fmt.Errorf("config.snapshots.cap must be at least 1")
	}
	return nil
}

// canonicalTargets rekeys pattern targets by practice title. Unknown
// practices and two spellings of the same practice are errors.
func canonicalTargets(in map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	seen := make(map[metrics.Practice]string, len(in))
	for key, v := range in {
		p := metrics.PracticeOf(key)
		if p == metrics.PracticeUnknown {
			return nil, fmt.Errorf("pattern target %s is not a practice", key)
		}
		if prev, ok := seen[p]; ok {
			a, b := min(prev, key), max(prev, key)
			return nil, fmt.Errorf("pattern targets %s and %s both name %s", a, b, p)
		}
		seen[p] = key
		out[string(p)] = v
	}
	return out, nil
}

// Targets converts the pattern targets to practice keys.
func (c *Config) Targets() metrics.Targets {
	out := metrics.Targets{}
	for k, v := range c.Planner.PatternTargets {
		out[metrics.PracticeOf(k)] = v
	}
	return out
}

// Location returns the planner time zone.
func (c *Config) Location() *time.Location {
	loc, err := daykey.Location(c.Planner.TimeZone)
	if err != nil {
		loc, _ = daykey.Location("")
	}
	return loc
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "jericho.yml")
}

// GenerateDefault returns default config YAML for a time zone.
func GenerateDefault(timeZone string) string {
	if timeZone == "" {
		timeZone = daykey.DefaultTimeZone
	}
	return fmt.Sprintf(defaultTemplate, timeZone)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(""))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Planner.PatternTargets
	cfg.Planner.PatternTargets = nil
	cfg.Suggestions.Templates = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	user, err := canonicalTargets(cfg.Planner.PatternTargets)
	if err != nil {
		return nil, err
	}
	for k, v := range user {
		defaults[k] = v
	}
	cfg.Planner.PatternTargets = defaults
	if cfg.Suggestions.Templates == nil {
		cfg.Suggestions.Templates = Default().Suggestions.Templates
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `planner:
  time_zone: %s
  classifier: keyword
  plan_source: scheduled
  history_window_days: 14
  pattern_targets:
    Body: 30
    Resources: 30
    Creation: 60
    Focus: 30

suggestions:
  slots: ["09:00", "16:00"]
  templates:
    - title: Deep work sprint
      domain: CREATION
      duration_minutes: 45
      frequency: weekly
      reason: build the core artifact
    - title: Training session
      domain: BODY
      duration_minutes: 30
      frequency: weekly
      reason: keep capacity up
    - title: Outreach block
      domain: RESOURCES
      duration_minutes: 30
      frequency: weekly
      reason: open doors
    - title: Weekly review
      domain: FOCUS
      duration_minutes: 20
      frequency: weekly
      reason: decide what matters next

snapshots:
  cap: 50
`
