package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	APP struct {
		Name      string
		Host      string
		Port      string
		Env       string
		JWTSecret string
	}
	DB struct {
		User     string
		Password string
		Name     string
		Host     string
		Port     string
		SSLMode  string
	}
	FILE struct {
		UploadPath           string
		UploadURL            string
		MaxUploadBytes       int64
		ThumbMaxDim          int
		FetchTimeout         time.Duration
		// ThumbURLHosts limits remote thumbnail sources; empty allows any public host.
		ThumbURLHosts        []string
		ThumbURLAllowPrivate bool
		SweepInterval        time.Duration
		SweepTTL             time.Duration
	}
	CACHE struct {
		Size int
		TTL  time.Duration
	}
	MQ struct {
		User         string
		Password     string
		Vhost        string
		Host         string
		AmqpPort     string
		Exchange     string
		ExchangeType string
		QueueName    string
	}

	Config struct {
		App   APP
		DB    DB
		File  FILE
		Cache CACHE
		MQ    MQ
	}
)

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func Load() Config {
	app := APP{
		Name:      getEnv("SERVICE_NAME", "filemanager"),
		Host:      getEnv("SERVICE_HOST", ""),
		Port:      getEnv("SERVICE_PORT", "8080"),
		Env:       getEnv("SERVICE_ENV", ""),
		JWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
	}
	db := DB{
		User:     getEnv("POSTGRES_USER", ""),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		Name:     getEnv("POSTGRES_DB", ""),
		Host:     getEnv("POSTGRES_HOST", ""),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
	file := FILE{
		UploadPath:           getEnv("FILE_UPLOAD_PATH", "./uploads"),
		UploadURL:            getEnv("FILE_UPLOAD_URL", "/uploads/"),
		MaxUploadBytes:       int64(getEnvInt("FILE_MAX_UPLOAD_BYTES", 20<<20)),
		ThumbMaxDim:          getEnvInt("FILE_THUMB_MAX_DIM", 2000),
		FetchTimeout:         getEnvDuration("FILE_FETCH_TIMEOUT", 10*time.Second),
		ThumbURLHosts:        getEnvList("FILE_THUMB_URL_HOSTS"),
		ThumbURLAllowPrivate: getEnvBool("FILE_THUMB_URL_ALLOW_PRIVATE", false),
		SweepInterval:        getEnvDuration("FILE_SWEEP_INTERVAL", 0),
		SweepTTL:             getEnvDuration("FILE_SWEEP_TTL", 24*time.Hour),
	}
	cache := CACHE{
		Size: getEnvInt("CACHE_SIZE", 1024),
		TTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
	}
	mq := MQ{
		User:         getEnv("RABBITMQ_USER", ""),
		Password:     getEnv("RABBITMQ_PASSWORD", ""),
		Vhost:        getEnv("RABBITMQ_VHOST", ""),
		Host:         getEnv("RABBITMQ_HOST", ""),
		AmqpPort:     getEnv("RABBITMQ_AMQP_PORT", "5672"),
		Exchange:     getEnv("RABBITMQ_EXCHANGE", "files"),
		ExchangeType: getEnv("RABBITMQ_EXCHANGE_TYPE", "topic"),
		QueueName:    getEnv("RABBITMQ_QUEUE_NAME", "filemanager.events"),
	}

	return Config{
		App:   app,
		DB:    db,
		File:  file,
		Cache: cache,
		MQ:    mq,
	}
}

func (c Config) DBDSN() (string, error) {
	if c.DB.User == "" || c.DB.Name == "" || c.DB.Host == "" || c.DB.Port == "" {
		return "", fmt.Errorf("incomplete DB config")
	}
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=%s",
		url.UserPassword(c.DB.User, c.DB.Password).String(),
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		url.QueryEscape(c.DB.SSLMode),
	), nil
}

// MQEnabled reports whether file events should be published at all.
func (c Config) MQEnabled() bool { return c.MQ.Host != "" }

func (c Config) AMQPDSN() (string, error) {
	if c.MQ.User == "" || c.MQ.Host == "" || c.MQ.AmqpPort == "" {
		return "", fmt.Errorf("invalid MQ config: user, host and amqp port are required")
	}

	return fmt.Sprintf(
		"%s://%s@%s:%s/%s",
		"amqp",
		url.UserPassword(c.MQ.User, c.MQ.Password).String(),
		c.MQ.Host,
		c.MQ.AmqpPort,
		url.PathEscape(c.MQ.Vhost),
	), nil
}
