package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env            string // DEV (local; default), TEST, QA, PROD
		Build          string
		Debug          bool
		TestMode       bool
		AppName        string
		SecretKey      string
		RollbarToken   string
		SendgridApiKey string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Roles    RolesConfig
	}

	ServerConfig struct {
		Address            string
		DebugAddress       string
		Host               string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine     string // empty: in-memory storage
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	RolesConfig struct {
		File  string // yaml|json|toml file with "domains" & "admins"
		JSON  string // inline JSON, takes precedence over File
		Watch bool   // hot reload File on change
		Match string // suffix (default) | domainpart
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// DefaultFromEmail parses the configured sender; falls back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// Environment variables are prefixed by ENV, e.g. DEV_SECRETKEY or PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Classgate")
	v.SetDefault("secretKey", "tq3-v!e0rb$a+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "classgate")
	v.SetDefault("database.user", "classgate")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("roles.file", filepath.Join("config", "roles.yaml"))
	v.SetDefault("roles.json", "")
	v.SetDefault("roles.watch", false)
	v.SetDefault("roles.match", "suffix")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			Host:               v.GetString("server.host"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
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
		Roles: RolesConfig{
			File:  v.GetString("roles.file"),
			JSON:  v.GetString("roles.json"),
			Watch: v.GetBool("roles.watch"),
			Match: v.GetString("roles.match"),
		},
	}
}

// configDir is CONFIG_DIR or "./config".
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}
