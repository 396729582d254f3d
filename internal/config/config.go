package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/fortuna/almanac/internal/harvest"
	"github.com/fortuna/almanac/internal/ingest/mackolik"
	"github.com/fortuna/almanac/internal/resume"
	"github.com/fortuna/almanac/internal/store"
)

const (
	// DefaultPath is read when no --config flag is given.
	DefaultPath = "almanac.yaml"

	defaultOutput = "fikstur_tum_ligler_all_seasons.xlsx"
)

// Duration reads YAML strings such as "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Output     string           `yaml:"output"`
	Mirrors    []string         `yaml:"mirrors"`
	Harvest    HarvestConfig    `yaml:"harvest"`
	Browser    BrowserConfig    `yaml:"browser"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Server     ServerConfig     `yaml:"server"`
}

type HarvestConfig struct {
	Seasons        int              `yaml:"seasons"`
	WeekTimeout    Duration         `yaml:"week_timeout"`
	BoundaryPolicy string           `yaml:"boundary_policy"`
	Leagues        []harvest.League `yaml:"leagues"`
}

type BrowserConfig struct {
	ShowBrowser bool     `yaml:"show_browser"`
	UserAgent   string   `yaml:"user_agent"`
	Interval    Duration `yaml:"interval"`
	Settle      Duration `yaml:"settle"`
}

// CheckpointConfig picks where in-progress datasets are kept: "file" next
// to the output, or "redis".
type CheckpointConfig struct {
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
}

// DatabaseConfig enables PostgreSQL. With a DSN, run history is kept in
// harvest_runs; Mirror also copies every committed dataset into fixtures.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Mirror bool   `yaml:"mirror"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
	// Events publishes harvest events to a Redis stream.
	Events bool `yaml:"events"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type ServerConfig struct {
	RESTPort   string `yaml:"rest_port"`
	WSPort     string `yaml:"ws_port"`
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// Defaults returns a complete configuration for a local xlsx harvest.
func Defaults() *Config {
	return &Config{
		Output:  defaultOutput,
		Mirrors: []string{store.SiblingPath(defaultOutput, ".csv")},
		Harvest: HarvestConfig{
			Seasons:        1,
			WeekTimeout:    Duration(90 * time.Second),
			BoundaryPolicy: string(resume.StepBack),
			Leagues:        mackolik.DefaultLeagues(),
		},
		Browser: BrowserConfig{
			UserAgent: mackolik.UserAgent,
			Interval:  Duration(mackolik.MinRequestInterval),
			Settle:    Duration(mackolik.DefaultSettle),
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Name:    "almanac",
		},
		Server: ServerConfig{
			RESTPort: "8080",
			WSPort:   "8081",
			Schedule: "0 3 * * *",
		},
	}
}

// Load layers Defaults, path, its ".local" sibling and the environment, in
// that order. Missing files are skipped.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	for _, p := range []string{path, localPath(path)} {
		if p == "" {
			continue
		}
		override, err := readFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, *override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge %s: %w", p, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// localPath maps "almanac.yaml" to "almanac.local.yaml".
func localPath(path string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *Config) applyEnv() error {
	c.Output = getEnv("ALMANAC_OUTPUT", c.Output)
	c.Database.DSN = getEnv("ALMANAC_DSN", c.Database.DSN)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate rejects configurations the harvester cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if err := checkDatasetPath("output", c.Output); err != nil {
		errs = append(errs, err)
	}
	for i, m := range c.Mirrors {
		if err := checkDatasetPath(fmt.Sprintf("mirrors[%d]", i), m); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Harvest.Seasons < 1 {
		errs = append(errs, fmt.Errorf("harvest.seasons must be at least 1, got %d", c.Harvest.Seasons))
	}
	if c.Harvest.WeekTimeout < 0 {
		errs = append(errs, errors.New("harvest.week_timeout must not be negative"))
	}
	if _, err := resume.ParseBoundaryPolicy(c.Harvest.BoundaryPolicy); err != nil {
		errs = append(errs, fmt.Errorf("harvest.boundary_policy: %w", err))
	}
	if len(c.Harvest.Leagues) == 0 {
		errs = append(errs, errors.New("harvest.leagues is empty"))
	}
	for i, l := range c.Harvest.Leagues {
		if l.Name == "" || l.URL == "" {
			errs = append(errs, fmt.Errorf("harvest.leagues[%d] needs name and url", i))
		}
	}

	switch c.Checkpoint.Backend {
	case "file":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("checkpoint.backend redis needs redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend %q is not file or redis", c.Checkpoint.Backend))
	}

	if c.Redis.Events && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.events needs redis.url"))
	}
	if c.Database.Mirror && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.mirror needs database.dsn"))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.token is set but telegram.chat_id is not"))
	}

	return errors.Join(errs...)
}

// HarvestOptions converts the harvest section for harvest.NewRunner.
func (c *Config) HarvestOptions() harvest.Options {
	policy, _ := resume.ParseBoundaryPolicy(c.Harvest.BoundaryPolicy)
	return harvest.Options{
		Seasons:        c.Harvest.Seasons,
		WeekTimeout:    c.Harvest.WeekTimeout.Std(),
		BoundaryPolicy: policy,
	}
}

// BrowserOptions converts the browser section for mackolik.NewClient.
func (c *Config) BrowserOptions() mackolik.Config {
	return mackolik.Config{
		Headless:  !c.Browser.ShowBrowser,
		UserAgent: c.Browser.UserAgent,
		Interval:  c.Browser.Interval.Std(),
		Settle:    c.Browser.Settle.Std(),
	}
}

func checkDatasetPath(field, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
		return nil
	case "":
		if path == "" {
			return fmt.Errorf("%s is empty", field)
		}
	}
	return fmt.Errorf("%s %q must end in .xlsx or .csv", field, path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
