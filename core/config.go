package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Port               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// GatewayConfig holds the endpoints and credentials shared by the
	// external service clients (discovery, studio, LMS).
	GatewayConfig struct {
		LMSBaseURL        string
		StudioBaseURL     string
		DiscoveryAPIURL   string
		OAuthTokenURL     string
		OAuthClientID     string
		OAuthClientSecret string
		Timeout           time.Duration
		MaxRetries        uint
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Gateways GatewayConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the app configuration; defaults first, then `config/.env.<env>`
// if present, then environment variables prefixed with the current ENV.
func NewConfig(build string) *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Learninghub")
	conf.SetDefault("secretKey", "+p7e=$v2yqrw&0(b3f)8#ik^sg5_x@4mz6u!1cjn9dhtol*a")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("serverHost", "0.0.0.0")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("debugHost", "0.0.0.0:4000")
	conf.SetDefault("shutdownTimeout", 5*time.Second)
	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbName", "learninghub")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbDisableTLS", true)
	conf.SetDefault("lmsBaseURL", "http://localhost:18000")
	conf.SetDefault("studioBaseURL", "http://localhost:18010")
	conf.SetDefault("discoveryAPIURL", "http://localhost:18381/api/v1/")
	conf.SetDefault("gatewayTimeout", 15*time.Second)
	conf.SetDefault("gatewayMaxRetries", 3)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		Env:              env,
		Build:            build,
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		SendgridAPIKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			Port:               conf.GetString("serverPort"),
			DebugHost:          conf.GetString("debugHost"),
			ShutdownTimeout:    conf.GetDuration("shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Name:          conf.GetString("dbName"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Gateways: GatewayConfig{
			LMSBaseURL:        conf.GetString("lmsBaseURL"),
			StudioBaseURL:     conf.GetString("studioBaseURL"),
			DiscoveryAPIURL:   conf.GetString("discoveryAPIURL"),
			OAuthTokenURL:     conf.GetString("oauthTokenURL"),
			OAuthClientID:     conf.GetString("oauthClientID"),
			OAuthClientSecret: conf.GetString("oauthClientSecret"),
			Timeout:           conf.GetDuration("gatewayTimeout"),
			MaxRetries:        conf.GetUint("gatewayMaxRetries"),
		},
	}
}
