package core

import (
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env       string
		Build     string
		Debug     bool
		TestMode  bool
		AppName   string `validate:"required"`
		SecretKey string `validate:"required"`

		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Backend  BackendConfig
		Capture  CaptureConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Host            string
		Address         string `validate:"required"`
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine     string `validate:"oneof=postgres sqlite3"`
		Host       string
		Port       int
		Name       string `validate:"required"`
		User       string
		Password   string
		DisableTLS bool
	}

	BackendConfig struct {
		BaseURL string `validate:"required,url"`
		Token   string
	}

	CaptureConfig struct {
		Interval time.Duration `validate:"gt=0"`
		Command  string
		Args     []string
		Dir      string
		MaxWidth int `validate:"gt=0"`
		Quality  int `validate:"min=1,max=100"`
	}

	EmailConfig struct {
		From           string `validate:"omitempty,email"`
		FromName       string
		SendgridAPIKey string
	}
)

// Address returns the "host:port" of the database server.
// For sqlite3, the database Name is the file path and Address is empty.
func (c DatabaseConfig) Address() string {
	if c.Engine == "sqlite3" {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c EmailConfig) DefaultFrom() mail.Address {
	return mail.Address{Name: c.FromName, Address: c.From}
}

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, eg: `DEV_BACKEND_BASEURL`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "EmotionTracking")
	v.SetDefault("secretKey", "9w$1k=h@xq+u(2vq3!m^w%_7t0p5o*ye8jd&c4n#zr6bla)fgi")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "emotiontracking")
	v.SetDefault("database.user", "emotiontracking")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("backend.baseURL", "http://localhost:5000")
	v.SetDefault("backend.token", "")

	v.SetDefault("capture.interval", 2*time.Second)
	v.SetDefault("capture.command", "")
	v.SetDefault("capture.args", []string{})
	v.SetDefault("capture.dir", "")
	v.SetDefault("capture.maxWidth", 640)
	v.SetDefault("capture.quality", 70)

	v.SetDefault("email.from", "noreply@localhost")
	v.SetDefault("email.fromName", "")
	v.SetDefault("email.sendgridAPIKey", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if err := loadDotEnv(env); err != nil {
		panic(err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.baseURL"), "/"),
			Token:   v.GetString("backend.token"),
		},
		Capture: CaptureConfig{
			Interval: v.GetDuration("capture.interval"),
			Command:  v.GetString("capture.command"),
			Args:     v.GetStringSlice("capture.args"),
			Dir:      v.GetString("capture.dir"),
			MaxWidth: v.GetInt("capture.maxWidth"),
			Quality:  v.GetInt("capture.quality"),
		},
		Email: EmailConfig{
			From:           v.GetString("email.from"),
			FromName:       v.GetString("email.fromName"),
			SendgridAPIKey: v.GetString("email.sendgridAPIKey"),
		},
	}
}

func loadDotEnv(env string) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return errors.Wrap(err, fmt.Sprintf("config.godotenv(%s)", dotEnvPath))
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, fmt.Sprintf("config.os.Stat(%s)", dotEnvPath))
	}
	return nil
}
