package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	pkclient "github.com/pushkit/go-client-sdk"
	"github.com/pushkit/go-client-sdk/interfaces"
	"github.com/pushkit/go-client-sdk/pkcomponents"
	"github.com/pushkit/go-client-sdk/pkfiledata"
	"github.com/pushkit/go-client-sdk/pkfilewatch"
	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/pksqlite"
)

const envPrefix = "PKDEMO_"

// Config holds the demo's settings.
type Config struct {
	App        AppConfig        `koanf:"app"`
	Endpoints  EndpointsConfig  `koanf:"endpoints"`
	Storage    StorageConfig    `koanf:"storage"`
	Analytics  AnalyticsConfig  `koanf:"analytics"`
	RemoteData RemoteDataConfig `koanf:"remote_data"`
	Logging    LoggingConfig    `koanf:"logging"`
	Script     ScriptConfig     `koanf:"script"`
	Offline    bool             `koanf:"offline"`
}

type AppConfig struct {
	Key       string `koanf:"key"`
	ID        string `koanf:"id"`
	Version   string `koanf:"version"`
	Locale    string `koanf:"locale"`
	ChannelID string `koanf:"channel_id"`
	NamedUser string `koanf:"named_user"`
	WaitFor   string `koanf:"wait_for"`
}

type EndpointsConfig struct {
	Proxy      string `koanf:"proxy"`
	Analytics  string `koanf:"analytics"`
	RemoteData string `koanf:"remote_data"`
	Device     string `koanf:"device"`
}

type StorageConfig struct {
	Path              string `koanf:"path"` // empty keeps everything in memory
	ScheduleCacheSize int    `koanf:"schedule_cache_size"`
}

type AnalyticsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BatchDelay string `koanf:"batch_delay"`
}

type RemoteDataConfig struct {
	PollInterval string   `koanf:"poll_interval"`
	Files        []string `koanf:"files"`
	WatchFiles   bool     `koanf:"watch_files"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error | none
}

// ScriptConfig describes the app session the demo plays back.
type ScriptConfig struct {
	Screens      []string          `koanf:"screens"`
	Events       []string          `koanf:"events"`
	Regions      []string          `koanf:"regions"`
	ChannelTags  map[string]string `koanf:"channel_tags"` // group -> comma-separated tags
	StepInterval string            `koanf:"step_interval"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Key) == "" {
		return fmt.Errorf("app.key is required")
	}
	for name, value := range map[string]string{
		"app.wait_for":              c.App.WaitFor,
		"analytics.batch_delay":     c.Analytics.BatchDelay,
		"remote_data.poll_interval": c.RemoteData.PollInterval,
		"script.step_interval":      c.Script.StepInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Storage.ScheduleCacheSize < 0 {
		return fmt.Errorf("storage.schedule_cache_size must be >= 0")
	}
	if c.RemoteData.WatchFiles && len(c.RemoteData.Files) == 0 {
		return fmt.Errorf("remote_data.watch_files requires remote_data.files")
	}
	return nil
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"app.version":                 "1.0.0",
		"app.locale":                  "en-US",
		"app.wait_for":                "5s",
		"storage.path":                "",
		"storage.schedule_cache_size": pksqlite.DefaultScheduleCacheSize,
		"analytics.enabled":           true,
		"analytics.batch_delay":       pkcomponents.DefaultBatchDelay.String(),
		"remote_data.poll_interval":   pkcomponents.DefaultRemoteDataPollInterval.String(),
		"remote_data.watch_files":     false,
		"logging.level":               "info",
		"script.screens":              []string{"home", "settings"},
		"script.events":               []string{"demo_started"},
		"script.step_interval":        "1s",
		"offline":                     false,
	}
	for key, value := range defaults {
		_ = k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLevel(name string) (ldlog.LogLevel, error) {
	switch strings.ToLower(name) {
	case "debug":
		return ldlog.Debug, nil
	case "info", "":
		return ldlog.Info, nil
	case "warn":
		return ldlog.Warn, nil
	case "error":
		return ldlog.Error, nil
	case "none":
		return ldlog.None, nil
	}
	return ldlog.None, fmt.Errorf("invalid logging.level %q (must be debug, info, warn, error or none)", name)
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ClientConfig maps validated settings onto the SDK configuration. Messages are shown through
// display, which is called with every message the SDK decides to display.
func (c *Config) ClientConfig(display pkinapp.AdapterFactory) pkclient.Config {
	level, _ := parseLevel(c.Logging.Level)
	config := pkclient.Config{
		ApplicationInfo: interfaces.ApplicationInfo{
			ApplicationID:      c.App.ID,
			ApplicationVersion: c.App.Version,
			Locale:             c.App.Locale,
		},
		Logging: pkcomponents.Logging().MinLevel(level),
		Offline: c.Offline,
	}

	if c.Endpoints.Proxy != "" {
		config.ServiceEndpoints = pkcomponents.ProxyEndpoints(c.Endpoints.Proxy)
	} else {
		config.ServiceEndpoints = interfaces.ServiceEndpoints{
			Analytics:  c.Endpoints.Analytics,
			RemoteData: c.Endpoints.RemoteData,
			Device:     c.Endpoints.Device,
		}
	}

	analytics := pkcomponents.Analytics().BatchDelay(mustDuration(c.Analytics.BatchDelay))
	inApp := pkcomponents.InAppMessaging()
	for _, displayType := range []pkinapp.DisplayType{
		pkinapp.DisplayBanner, pkinapp.DisplayModal, pkinapp.DisplayFullScreen, pkinapp.DisplayHTML, pkinapp.DisplayCustom,
	} {
		inApp.AdapterFactory(displayType, display)
	}
	actions := pkcomponents.ActionAutomation()
	if c.Storage.Path != "" {
		config.DataStore = pksqlite.DataStore().Path(c.Storage.Path)
		analytics.EventStore(pksqlite.EventStore().Path(c.Storage.Path))
		inApp.ScheduleStore(pksqlite.ScheduleStore().Path(c.Storage.Path).CacheSize(c.Storage.ScheduleCacheSize))
		actions.ScheduleStore(pksqlite.ActionScheduleStore().Path(c.Storage.Path).CacheSize(c.Storage.ScheduleCacheSize))
	}
	config.Analytics = analytics
	config.InAppMessaging = inApp
	config.ActionAutomation = actions

	if len(c.RemoteData.Files) > 0 {
		fileSource := pkfiledata.DataSource().FilePaths(c.RemoteData.Files...)
		if c.RemoteData.WatchFiles {
			fileSource.Reloader(pkfilewatch.WatchFiles)
		}
		config.RemoteData = fileSource
	} else {
		config.RemoteData = pkcomponents.PollingRemoteData().PollInterval(mustDuration(c.RemoteData.PollInterval))
	}
	return config
}
