package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config.
	Version    int              `koanf:"version"`
	Debug      Debug            `koanf:"debug"`
	Retry      Retry            `koanf:"retry"`
	PostgreSQL PostgreSQL       `koanf:"postgresql"`
	Redis      Redis            `koanf:"redis"`
	Telegram   Telegram         `koanf:"telegram"`
	Moderation ModerationConfig `koanf:"moderation"`
	Audit      Audit            `koanf:"audit"`
	Reconcile  Reconcile        `koanf:"reconcile"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Retry contains retry configuration for transport operations.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Telegram contains Telegram transport configuration.
type Telegram struct {
	// Bot token for authentication.
	Token string `koanf:"token"`
	// Chat ID of the moderated group.
	GroupChatID int64 `koanf:"group_chat_id"`
	// Chat ID of the administrative chat where commands are accepted.
	AdminChatID int64 `koanf:"admin_chat_id"`
	// Long-poll timeout in seconds.
	PollTimeout int `koanf:"poll_timeout"`
}

// ModerationConfig contains rule engine and escalation configuration.
type ModerationConfig struct {
	// Rule list file name, searched in the config paths (empty for built-in defaults).
	RuleListFile string `koanf:"rule_list_file"`
	// Script messages are expected to be written in (cyrillic, latin, greek).
	RequiredScript string `koanf:"required_script"`
	// Letter ratio below which the required-script rule fires.
	ScriptRatioThreshold float64 `koanf:"script_ratio_threshold"`
	// Uppercase letter ratio above which the caps rule fires.
	CapsRatioThreshold float64 `koanf:"caps_ratio_threshold"`
	// Minimum letters before the caps rule is evaluated.
	CapsMinLetters int `koanf:"caps_min_letters"`
	// Consecutive emoji-only messages that trigger a violation.
	EmojiStreakLimit int `koanf:"emoji_streak_limit"`
	// Messages allowed inside the rate window before the next one violates.
	RateLimitCount int `koanf:"rate_limit_count"`
	// Rate window length in minutes.
	RateWindowMinutes int `koanf:"rate_window_minutes"`
	// Idle minutes after which per-user transient state is evicted.
	StateTTLMinutes int `koanf:"state_ttl_minutes"`
	// Warning count that triggers an automatic mute (0 disables).
	MuteAfterWarnings int `koanf:"mute_after_warnings"`
	// Automatic mute length in minutes.
	AutoMuteMinutes int `koanf:"auto_mute_minutes"`
	// Warning count that triggers an automatic ban (0 disables).
	BanAfterWarnings int `koanf:"ban_after_warnings"`
	// Automatic ban length in hours.
	AutoBanHours int `koanf:"auto_ban_hours"`
}

// Audit contains audit log configuration.
type Audit struct {
	// Directory where the audit database is stored.
	Dir string `koanf:"dir"`
}

// Reconcile contains reconciliation worker configuration.
type Reconcile struct {
	// Interval between reconciliation runs in minutes.
	IntervalMinutes int `koanf:"interval_minutes"`
	// Maximum concurrent per-user reconciliation tasks.
	Concurrency int `koanf:"concurrency"`
}

// configPaths lists the search paths for config files.
func configPaths() []string {
	paths := []string{".chatwarden"}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, homeDir+"/.chatwarden/config")
	}

	return append(paths, "/etc/chatwarden/config", "/app/config", "config", ".")
}

// LoadConfig loads the configuration from the first available config path.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	for _, path := range configPaths() {
		configPath := fmt.Sprintf("%s/chatwarden.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: chatwarden.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: chatwarden.toml", ErrConfigVersionMissing)
	}

	if current != expected {
		return fmt.Errorf("%w: chatwarden.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, current, expected)
	}

	return nil
}
