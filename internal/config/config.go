// Package config loads and validates service configuration from one TOML
// file or a directory of TOML fragments.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen   = ":8080"
	defaultHealthPath   = "/healthz"
	defaultReadyPath    = "/readyz"
	defaultIngestPath   = "/alerts"
	defaultMaxBodyBytes = 1 << 20

	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSSubject      = "alerts.dispatch"
	defaultNATSStream       = "ALERT_DISPATCH"
	defaultNATSConsumer     = "slackalert-ingest"
	defaultNATSDeliverGroup = "slackalert-workers"
	defaultNATSAckWaitSec   = 30
	defaultNATSNackDelayMS  = 1000
	defaultNATSMaxDeliver   = 5
	defaultNATSAckPending   = 256

	defaultReloadSeconds = 5

	// ServiceModeSingle runs HTTP ingest only.
	ServiceModeSingle = "single"
	// ServiceModeNATS adds the JetStream queue consumer.
	ServiceModeNATS = "nats"

	// IgnoreUserID is the sentinel override value meaning "never mention this
	// user" (dummy users, mailing lists, PagerDuty accounts).
	IgnoreUserID = "ignore"
)

// Config holds the full runtime configuration snapshot.
// Params: TOML sections from one file or a merged directory.
// Returns: validated runtime configuration.
type Config struct {
	Service         ServiceConfig          `toml:"service"`
	Log             LogConfig              `toml:"log"`
	Ingest          IngestConfig           `toml:"ingest"`
	Slack           SlackConfig            `toml:"slack"`
	Monitor         MonitorConfig          `toml:"monitor"`
	ServiceChannels []ServiceChannelConfig `toml:"service_channel"`
	UserOverrides   []UserOverrideConfig   `toml:"user_override"`
}

// ServiceConfig holds process-level settings.
// Params: service mode and config reload cadence.
// Returns: runtime mode selection.
type ServiceConfig struct {
	Mode              string `toml:"mode"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
}

// LogConfig holds console and file sink settings.
// Params: per-sink enabled/level/format plus file rotation fields.
// Returns: logging setup input.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig is one log sink.
// Params: level is debug/info/warn/error; format is line or json; the file
// sink additionally takes path and rotation limits.
// Returns: sink setup input.
type LogSinkConfig struct {
	Enabled    bool   `toml:"enabled"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// IngestConfig groups alert intake transports.
// Params: HTTP endpoint and NATS consumer settings.
// Returns: ingest wiring input.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig is the HTTP alert intake endpoint.
// Params: listen address, paths, and request body cap.
// Returns: HTTP server setup input.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	IngestPath   string `toml:"ingest_path"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig is the JetStream alert intake consumer.
// Params: connection URLs, stream binding, and redelivery policy.
// Returns: NATS subscriber setup input.
type NATSIngestConfig struct {
	Enabled       bool       `toml:"enabled"`
	URL           StringList `toml:"url"`
	Subject       string     `toml:"subject"`
	Stream        string     `toml:"stream"`
	ConsumerName  string     `toml:"consumer_name"`
	DeliverGroup  string     `toml:"deliver_group"`
	AckWaitSec    int        `toml:"ack_wait_sec"`
	NackDelayMS   int        `toml:"nack_delay_ms"`
	MaxDeliver    int        `toml:"max_deliver"`
	MaxAckPending int        `toml:"max_ack_pending"`
}

// SlackConfig is the Slack workspace instance.
// Params: server base URL, bot access token, and default channel.
// Returns: chat target derivation input.
type SlackConfig struct {
	ServerURL        string `toml:"server_url"`
	AccessToken      string `toml:"access_token"`
	DefaultChannelID string `toml:"default_channel_id"`
}

// MonitorConfig points back at the monitoring system UI.
// Params: base URL for check/profile links and optional Jenkins base URL.
// Returns: contextual link building input.
type MonitorConfig struct {
	BaseURL        string `toml:"base_url"`
	JenkinsBaseURL string `toml:"jenkins_base_url"`
}

// ServiceChannelConfig overrides the target channel for one service.
// Params: monitored service name and Slack channel id.
// Returns: per-service channel routing entry.
type ServiceChannelConfig struct {
	Service   string `toml:"service"`
	ChannelID string `toml:"channel_id"`
}

// UserOverrideConfig is one per-user Slack id override record.
// Params: host user id and Slack id value, or the ignore sentinel.
// Returns: identity override entry re-read each send.
type UserOverrideConfig struct {
	UserID  int64  `toml:"user_id"`
	SlackID string `toml:"slack_id"`
}

// StringList decodes either one string or an array of strings.
// Params: TOML value of either shape.
// Returns: normalized string slice.
type StringList []string

// UnmarshalTOML accepts scalar and array forms.
// Params: decoded TOML value.
// Returns: error for other value shapes.
func (s *StringList) UnmarshalTOML(v interface{}) error {
	switch value := v.(type) {
	case string:
		*s = StringList{value}
		return nil
	case []interface{}:
		out := make(StringList, 0, len(value))
		for _, item := range value {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("string list item %v is not a string", item)
			}
			out = append(out, str)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("unsupported string list value %v", v)
	}
}

// ConfigSource identifies where snapshots are loaded from.
// Params: exactly one of file path or fragment directory.
// Returns: reusable source for initial load and periodic reload.
type ConfigSource struct {
	FilePath string
	DirPath  string
}

// FromCLI validates CLI source flags into a ConfigSource.
// Params: --config-file and --config-dir values.
// Returns: source or flag usage error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	file := strings.TrimSpace(filePath)
	dir := strings.TrimSpace(dirPath)
	if (file == "") == (dir == "") {
		return ConfigSource{}, errors.New("exactly one of --config-file or --config-dir is required")
	}
	return ConfigSource{FilePath: file, DirPath: dir}, nil
}

// LoadSnapshot loads, defaults, and validates one configuration snapshot.
// Params: config source.
// Returns: validated config or load error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var (
		cfg Config
		err error
	)
	if src.FilePath != "" {
		cfg, err = loadFile(src.FilePath)
	} else {
		cfg, err = loadDir(src.DirPath)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes one TOML file strictly.
// Params: file path.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	decoder := toml.NewDecoder(strings.NewReader(string(body)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir merges all *.toml fragments of a directory in lexical order.
// Params: directory path.
// Returns: merged config; scalar sections override, list sections append.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return Config{}, fmt.Errorf("config dir %q has no .toml fragments", dir)
	}
	sort.Strings(names)

	var merged Config
	for _, name := range names {
		fragment, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays one fragment onto the accumulated config.
// Params: destination and source fragment.
// Returns: destination updated; set scalar fields win, lists append.
func mergeConfig(dst *Config, src Config) {
	if src.Service.Mode != "" {
		dst.Service.Mode = src.Service.Mode
	}
	if src.Service.ReloadEnabled {
		dst.Service.ReloadEnabled = true
	}
	if src.Service.ReloadIntervalSec != 0 {
		dst.Service.ReloadIntervalSec = src.Service.ReloadIntervalSec
	}
	mergeLogSink(&dst.Log.Console, src.Log.Console)
	mergeLogSink(&dst.Log.File, src.Log.File)
	mergeHTTPIngest(&dst.Ingest.HTTP, src.Ingest.HTTP)
	mergeNATSIngest(&dst.Ingest.NATS, src.Ingest.NATS)
	if src.Slack.ServerURL != "" {
		dst.Slack.ServerURL = src.Slack.ServerURL
	}
	if src.Slack.AccessToken != "" {
		dst.Slack.AccessToken = src.Slack.AccessToken
	}
	if src.Slack.DefaultChannelID != "" {
		dst.Slack.DefaultChannelID = src.Slack.DefaultChannelID
	}
	if src.Monitor.BaseURL != "" {
		dst.Monitor.BaseURL = src.Monitor.BaseURL
	}
	if src.Monitor.JenkinsBaseURL != "" {
		dst.Monitor.JenkinsBaseURL = src.Monitor.JenkinsBaseURL
	}
	dst.ServiceChannels = append(dst.ServiceChannels, src.ServiceChannels...)
	dst.UserOverrides = append(dst.UserOverrides, src.UserOverrides...)
}

// mergeLogSink overlays one log sink fragment.
// Params: destination and source sink.
// Returns: destination updated field-wise.
func mergeLogSink(dst *LogSinkConfig, src LogSinkConfig) {
	if src.Enabled {
		dst.Enabled = true
	}
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.MaxSizeMB != 0 {
		dst.MaxSizeMB = src.MaxSizeMB
	}
	if src.MaxBackups != 0 {
		dst.MaxBackups = src.MaxBackups
	}
	if src.MaxAgeDays != 0 {
		dst.MaxAgeDays = src.MaxAgeDays
	}
	if src.Compress {
		dst.Compress = true
	}
}

// mergeHTTPIngest overlays one HTTP ingest fragment.
// Params: destination and source.
// Returns: destination updated field-wise.
func mergeHTTPIngest(dst *HTTPIngestConfig, src HTTPIngestConfig) {
	if src.Enabled {
		dst.Enabled = true
	}
	if src.Listen != "" {
		dst.Listen = src.Listen
	}
	if src.IngestPath != "" {
		dst.IngestPath = src.IngestPath
	}
	if src.HealthPath != "" {
		dst.HealthPath = src.HealthPath
	}
	if src.ReadyPath != "" {
		dst.ReadyPath = src.ReadyPath
	}
	if src.MaxBodyBytes != 0 {
		dst.MaxBodyBytes = src.MaxBodyBytes
	}
}

// mergeNATSIngest overlays one NATS ingest fragment.
// Params: destination and source.
// Returns: destination updated field-wise.
func mergeNATSIngest(dst *NATSIngestConfig, src NATSIngestConfig) {
	if src.Enabled {
		dst.Enabled = true
	}
	if len(src.URL) != 0 {
		dst.URL = src.URL
	}
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if src.Stream != "" {
		dst.Stream = src.Stream
	}
	if src.ConsumerName != "" {
		dst.ConsumerName = src.ConsumerName
	}
	if src.DeliverGroup != "" {
		dst.DeliverGroup = src.DeliverGroup
	}
	if src.AckWaitSec != 0 {
		dst.AckWaitSec = src.AckWaitSec
	}
	if src.NackDelayMS != 0 {
		dst.NackDelayMS = src.NackDelayMS
	}
	if src.MaxDeliver != 0 {
		dst.MaxDeliver = src.MaxDeliver
	}
	if src.MaxAckPending != 0 {
		dst.MaxAckPending = src.MaxAckPending
	}
}

// applyDefaults fills unset fields with service defaults.
// Params: decoded config.
// Returns: config mutated in place.
func applyDefaults(cfg *Config) {
	if cfg.Service.Mode == "" {
		cfg.Service.Mode = ServiceModeSingle
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	fillLogSinkDefaults(&cfg.Log.Console, "line")
	fillLogSinkDefaults(&cfg.Log.File, "json")
	if cfg.Log.File.MaxSizeMB <= 0 {
		cfg.Log.File.MaxSizeMB = 10
	}
	if cfg.Log.File.MaxBackups <= 0 {
		cfg.Log.File.MaxBackups = 5
	}
	if cfg.Log.File.MaxAgeDays <= 0 {
		cfg.Log.File.MaxAgeDays = 14
	}

	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}
	if cfg.Ingest.HTTP.Listen == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.IngestPath == "" {
		cfg.Ingest.HTTP.IngestPath = defaultIngestPath
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = StringList{defaultNATSURL}
	}
	if cfg.Ingest.NATS.Subject == "" {
		cfg.Ingest.NATS.Subject = defaultNATSSubject
	}
	if cfg.Ingest.NATS.Stream == "" {
		cfg.Ingest.NATS.Stream = defaultNATSStream
	}
	if cfg.Ingest.NATS.ConsumerName == "" {
		cfg.Ingest.NATS.ConsumerName = defaultNATSConsumer
	}
	if cfg.Ingest.NATS.DeliverGroup == "" {
		cfg.Ingest.NATS.DeliverGroup = defaultNATSDeliverGroup
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS <= 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending <= 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultNATSAckPending
	}
}

// fillLogSinkDefaults fills one sink's level and format.
// Params: sink pointer and default format.
// Returns: sink mutated in place.
func fillLogSinkDefaults(sink *LogSinkConfig, format string) {
	if sink.Level == "" {
		sink.Level = "info"
	}
	if sink.Format == "" {
		sink.Format = format
	}
}

// validateConfig validates one defaulted snapshot.
// Params: config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if !IsSupportedServiceMode(cfg.Service.Mode) {
		return fmt.Errorf("service.mode %q is not supported", cfg.Service.Mode)
	}
	if cfg.Service.Mode == ServiceModeNATS && !cfg.Ingest.NATS.Enabled {
		return errors.New("service.mode nats requires ingest.nats.enabled")
	}

	if strings.TrimSpace(cfg.Slack.ServerURL) == "" {
		return errors.New("slack.server_url is required")
	}
	if !strings.HasPrefix(cfg.Slack.ServerURL, "http://") && !strings.HasPrefix(cfg.Slack.ServerURL, "https://") {
		return fmt.Errorf("slack.server_url %q must be an absolute http(s) URL", cfg.Slack.ServerURL)
	}
	if strings.TrimSpace(cfg.Slack.AccessToken) == "" {
		return errors.New("slack.access_token is required")
	}
	if strings.TrimSpace(cfg.Monitor.BaseURL) == "" {
		return errors.New("monitor.base_url is required")
	}

	seenServices := make(map[string]struct{}, len(cfg.ServiceChannels))
	for i, route := range cfg.ServiceChannels {
		if strings.TrimSpace(route.Service) == "" {
			return fmt.Errorf("service_channel[%d].service is required", i)
		}
		if strings.TrimSpace(route.ChannelID) == "" {
			return fmt.Errorf("service_channel[%d].channel_id is required", i)
		}
		if _, dup := seenServices[route.Service]; dup {
			return fmt.Errorf("service_channel %q is configured twice", route.Service)
		}
		seenServices[route.Service] = struct{}{}
	}

	for i, override := range cfg.UserOverrides {
		if override.UserID <= 0 {
			return fmt.Errorf("user_override[%d].user_id must be >0", i)
		}
		if err := ValidateSlackUserID(override.SlackID); err != nil {
			return fmt.Errorf("user_override[%d].slack_id: %w", i, err)
		}
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	return validateLogSink("log.file", cfg.Log.File, true)
}

// validateLogSink validates one sink's level, format, and path.
// Params: section name, sink, and whether a path is required when enabled.
// Returns: validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	switch strings.ToLower(sink.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level %q is not supported", name, sink.Level)
	}
	switch sink.Format {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format %q is not supported", name, sink.Format)
	}
	if requirePath && sink.Enabled && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when the sink is enabled", name)
	}
	return nil
}

// ValidateSlackUserID validates one override value.
// Params: configured Slack id or the ignore sentinel.
// Returns: error unless the value is the sentinel or starts with U or W.
func ValidateSlackUserID(slackID string) error {
	if slackID == IgnoreUserID {
		return nil
	}
	if strings.HasPrefix(slackID, "U") || strings.HasPrefix(slackID, "W") {
		return nil
	}
	return fmt.Errorf("slack user id %q should start with a U or W, or be %q", slackID, IgnoreUserID)
}

// NormalizeServiceMode lowers and trims a mode value.
// Params: raw mode string.
// Returns: normalized mode.
func NormalizeServiceMode(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsSupportedServiceMode reports whether the mode is known.
// Params: normalized mode.
// Returns: true for single and nats.
func IsSupportedServiceMode(mode string) bool {
	switch mode {
	case ServiceModeSingle, ServiceModeNATS:
		return true
	default:
		return false
	}
}

// ChannelForService resolves the target channel for one service.
// Params: config snapshot and service name.
// Returns: per-service override when present, else the default channel id
// (may be empty; the dispatcher treats that as a configuration error).
func ChannelForService(cfg Config, service string) string {
	for _, route := range cfg.ServiceChannels {
		if route.Service == service {
			return route.ChannelID
		}
	}
	return cfg.Slack.DefaultChannelID
}

// UserOverride finds the override value for one host user id.
// Params: config snapshot and host user id.
// Returns: raw override value and presence; first match wins when the same
// user is configured twice.
func UserOverride(cfg Config, userID int64) (string, bool) {
	for _, override := range cfg.UserOverrides {
		if override.UserID == userID && override.SlackID != "" {
			return override.SlackID, true
		}
	}
	return "", false
}
