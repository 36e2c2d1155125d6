package config

import (
	"os"
	"time"

	"github.com/loykin/hostbeat/internal/history"
	"github.com/loykin/hostbeat/internal/logger"
	"github.com/spf13/viper"
)

// Settings is the engine-level TOML configuration, everything that is
// not one of the pipe-delimited tables.
type Settings struct {
	Monitor   MonitorSettings   `mapstructure:"monitor"`
	URLCheck  URLCheckSettings  `mapstructure:"urlcheck"`
	Heartbeat HeartbeatSettings `mapstructure:"heartbeat"`
	Guard     GuardSettings     `mapstructure:"guard"`
	Notify    NotifySettings    `mapstructure:"notify"`
	History   history.Config    `mapstructure:"history"`
	Log       logger.Config     `mapstructure:"log"`
}

type MonitorSettings struct {
	Processes  string `mapstructure:"processes"`   // process table path
	RestartLog string `mapstructure:"restart_log"` // append-only action log
}

// URLCheckSettings gates the dashboard URL check: an empty URL disables
// it entirely.
type URLCheckSettings struct {
	URL            string        `mapstructure:"url"`
	ExpectedStatus int           `mapstructure:"expected_status"`
	Timeout        time.Duration `mapstructure:"timeout"`
	OKNotifyHours  []int         `mapstructure:"ok_notify_hours"` // hours (0-23) when a healthy ping may fire
	StateFile      string        `mapstructure:"state_file"`
}

type HeartbeatSettings struct {
	Peers          string        `mapstructure:"peers"` // peer table path
	KeyFile        string        `mapstructure:"key_file"`
	RemoteDir      string        `mapstructure:"remote_dir"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	Workers        int           `mapstructure:"workers"`
}

type GuardSettings struct {
	LockFile string        `mapstructure:"lock_file"`
	Interval time.Duration `mapstructure:"interval"` // expected cycle interval, drives staleness
}

type NotifySettings struct {
	Timeout  time.Duration    `mapstructure:"timeout"`
	Telegram TelegramSettings `mapstructure:"telegram"`
	WeCom    WeComSettings    `mapstructure:"wecom"`
	PushPlus PushPlusSettings `mapstructure:"pushplus"`
}

type TelegramSettings struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

type WeComSettings struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type PushPlusSettings struct {
	Token string `mapstructure:"token"`
}

// DefaultSettings returns the settings used when no TOML file exists.
func DefaultSettings() Settings {
	return Settings{
		Monitor: MonitorSettings{
			Processes:  "monitor.conf",
			RestartLog: "restart.log",
		},
		Heartbeat: HeartbeatSettings{
			Peers:          "heartbeat.conf",
			RemoteDir:      "~/hostbeat",
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 30 * time.Second,
			Workers:        4,
		},
		Guard: GuardSettings{
			LockFile: "hostbeat.lock",
			Interval: 5 * time.Minute,
		},
	}
}

// LoadSettings reads a TOML settings file. A missing file yields the
// defaults; the tables have their own existence contract.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return s, err
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, err
	}
	if s.Heartbeat.Workers <= 0 {
		s.Heartbeat.Workers = 4
	}
	if s.Guard.Interval <= 0 {
		s.Guard.Interval = 5 * time.Minute
	}
	return s, nil
}
