package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Storage    Storage  `yaml:"storage"`
	Fairness   Fairness `yaml:"fairness"`
	Admin      Admin    `yaml:"admin"`
	Ledger     Ledger   `yaml:"ledger"`
	Events     Events   `yaml:"events"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mysql"`
	DSN    string `yaml:"dsn" env:"STORAGE_DSN"`
}

type Fairness struct {
	DigitCount       int    `yaml:"digit_count" env-default:"6"`
	GrindMaxAttempts int    `yaml:"grind_max_attempts" env-default:"100000"`
	VaultSecret      string `yaml:"vault_secret" env:"VAULT_SECRET" env-required:"true"`
}

type Admin struct {
	AdminIDs         []int64 `yaml:"admin_ids" env:"ADMIN_IDS"`
	ConfirmThreshold int     `yaml:"confirm_threshold" env-default:"2"`
}

type Ledger struct {
	HouseRateBps      int64 `yaml:"house_rate_bps" env-default:"300"`
	PayoutMaxAttempts int   `yaml:"payout_max_attempts" env-default:"3"`
}

type Events struct {
	Backend       string `yaml:"backend" env-default:"websocket"`
	WebsocketURL  string `yaml:"websocket_url" env-default:"ws://localhost:8081/ws?room=events"`
	PusherAppID   string `yaml:"pusher_app_id" env:"PUSHER_APP_ID"`
	PusherKey     string `yaml:"pusher_key" env:"PUSHER_KEY"`
	PusherSecret  string `yaml:"pusher_secret" env:"PUSHER_SECRET"`
	PusherCluster string `yaml:"pusher_cluster" env:"PUSHER_CLUSTER"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

// IsAdmin reports whether id belongs to the privileged admin set.
func (a Admin) IsAdmin(id int64) bool {
	for _, adminID := range a.AdminIDs {
		if adminID == id {
			return true
		}
	}

	return false
}
