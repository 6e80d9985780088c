package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Twilio    TwilioConfig
	SMS       SMSConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Scheduler SchedulerConfig
	Catalog   CatalogConfig
	LogLevel  string
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	APIURL            string
	StatusCallbackURL string
	VerifySignature   bool
	PublicURL         string
}

type SMSConfig struct {
	ContentMax  int
	SendTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type AMQPConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type SchedulerConfig struct {
	Interval   time.Duration
	Recipients []string
	AutoStart  bool
}

type CatalogConfig struct {
	QuestionsFile string
}

// LoadAll reads the configuration from the environment. Every missing or
// malformed variable is reported in the returned error.
func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	dbURL, err := requireEnv("DATABASE_URL")
	collect(err)
	accountSID, err := requireEnv("TWILIO_ACCOUNT_SID")
	collect(err)
	authToken, err := requireEnv("TWILIO_AUTH_TOKEN")
	collect(err)
	fromNumber, err := requireEnv("TWILIO_FROM_NUMBER")
	collect(err)

	verify, err := getEnvBool("TWILIO_VERIFY_SIGNATURE", true)
	collect(err)
	contentMax, err := getEnvInt("SMS_CONTENT_MAX", 1600)
	collect(err)
	sendTimeout, err := getEnvInt("SEND_TIMEOUT_SECONDS", 10)
	collect(err)
	interval, err := getEnvInt("SCHED_INTERVAL_SECONDS", 86400)
	collect(err)
	autoStart, err := getEnvBool("SCHED_AUTOSTART", false)
	collect(err)

	redisCfg, err := loadRedisConfig()
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "postgres"),
			URL:    dbURL,
		},
		Twilio: TwilioConfig{
			AccountSID:        accountSID,
			AuthToken:         authToken,
			FromNumber:        fromNumber,
			APIURL:            getEnv("TWILIO_API_URL", "https://api.twilio.com"),
			StatusCallbackURL: os.Getenv("TWILIO_STATUS_CALLBACK_URL"),
			VerifySignature:   verify,
			PublicURL:         strings.TrimRight(os.Getenv("WEBHOOK_PUBLIC_URL"), "/"),
		},
		SMS: SMSConfig{
			ContentMax:  contentMax,
			SendTimeout: time.Duration(sendTimeout) * time.Second,
		},
		Redis: redisCfg,
		AMQP: AMQPConfig{
			Enabled:  os.Getenv("AMQP_URL") != "",
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "sms.events"),
		},
		Scheduler: SchedulerConfig{
			Interval:   time.Duration(interval) * time.Second,
			Recipients: splitList(os.Getenv("SCHED_RECIPIENTS")),
			AutoStart:  autoStart,
		},
		Catalog: CatalogConfig{
			QuestionsFile: os.Getenv("QUESTIONS_FILE"),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("REDIS_TTL_SECONDS", 86400)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors([]error{dbErr, ttlErr})
}

func validate(cfg *Config) []error {
	var errs []error
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", cfg.Database.Driver))
	}
	if !strings.HasPrefix(cfg.Twilio.AccountSID, "AC") {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID must start with AC"))
	}
	if cfg.SMS.ContentMax <= 0 {
		errs = append(errs, errors.New("SMS_CONTENT_MAX must be > 0"))
	}
	if cfg.SMS.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT_SECONDS must be > 0"))
	}
	for _, phone := range cfg.Scheduler.Recipients {
		if !model.ValidPhone(phone) {
			errs = append(errs, fmt.Errorf("SCHED_RECIPIENTS entry %q must be + followed by 1-15 digits", phone))
		}
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
