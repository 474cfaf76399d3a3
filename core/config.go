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
	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		defaultFromEmail string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
		AI       AIConfig
		Chat     ChatConfig
		Portal   PortalConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		AllowedOrigins            []string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	StorageConfig struct {
		Backend                string // local | cloudinary
		LocalDir               string
		BaseURL                string
		CloudinaryCloudName    string
		CloudinaryUploadPreset string
		MaxImageSize           int64
	}

	AIConfig struct {
		Provider     string // openai | canned
		BaseURL      string
		APIKey       string
		Model        string
		MaxTokens    int
		SystemPrompt string
		Timeout      time.Duration
	}

	ChatConfig struct {
		RateLimit     int
		RateWindow    time.Duration
		MaxMessageLen int
		MaxHistory    int
	}

	PortalConfig struct {
		OnlineWindow     time.Duration
		DefaultCapacity  int
		DefaultCredits   int
		DefaultGroupSize int
		ActivityLimit    int
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Campus")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "x8#q2v!m0^lk3ur@w9t&zp7hs(e1j)d5c+b6yf4na*g")
	v.SetDefault("defaultFromEmail", "Campus <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "campus")
	v.SetDefault("database.user", "campus")
	v.SetDefault("database.password", "campus")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "campus.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.localDir", "media")
	v.SetDefault("storage.baseURL", "http://localhost:8000/media")
	v.SetDefault("storage.cloudinaryCloudName", "")
	v.SetDefault("storage.cloudinaryUploadPreset", "")
	v.SetDefault("storage.maxImageSize", int64(5*1024*1024))

	v.SetDefault("ai.provider", "canned")
	v.SetDefault("ai.baseURL", "https://api.openai.com/v1")
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.maxTokens", 512)
	v.SetDefault("ai.systemPrompt", "You are Campus Assistant, a friendly study helper for university students. "+
		"Answer questions about courses, study techniques and campus life concisely.")
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("chat.rateLimit", 20)
	v.SetDefault("chat.rateWindow", time.Minute)
	v.SetDefault("chat.maxMessageLen", 2000)
	v.SetDefault("chat.maxHistory", 20)

	v.SetDefault("portal.onlineWindow", 2*time.Minute)
	v.SetDefault("portal.defaultCapacity", 30)
	v.SetDefault("portal.defaultCredits", 3)
	v.SetDefault("portal.defaultGroupSize", 10)
	v.SetDefault("portal.activityLimit", 20)
}

// NewConfig loads the configuration for the current ENV (DEV (default), TEST, QA, PROD).
// Values come from the defaults, the optional `config/.env.<env>` file, then the environment;
// keys are upper-cased, prefixed with the env and dot-separated by underscores (eg. PROD_DATABASE_HOST).
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("debug", false)
		v.SetDefault("database.engine", "memory")
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			AllowedOrigins:            v.GetStringSlice("server.allowedOrigins"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Backend:                strings.ToLower(v.GetString("storage.backend")),
			LocalDir:               v.GetString("storage.localDir"),
			BaseURL:                strings.TrimSuffix(v.GetString("storage.baseURL"), "/"),
			CloudinaryCloudName:    v.GetString("storage.cloudinaryCloudName"),
			CloudinaryUploadPreset: v.GetString("storage.cloudinaryUploadPreset"),
			MaxImageSize:           v.GetInt64("storage.maxImageSize"),
		},
		AI: AIConfig{
			Provider:     strings.ToLower(v.GetString("ai.provider")),
			BaseURL:      strings.TrimSuffix(v.GetString("ai.baseURL"), "/"),
			APIKey:       v.GetString("ai.apiKey"),
			Model:        v.GetString("ai.model"),
			MaxTokens:    v.GetInt("ai.maxTokens"),
			SystemPrompt: v.GetString("ai.systemPrompt"),
			Timeout:      v.GetDuration("ai.timeout"),
		},
		Chat: ChatConfig{
			RateLimit:     v.GetInt("chat.rateLimit"),
			RateWindow:    v.GetDuration("chat.rateWindow"),
			MaxMessageLen: v.GetInt("chat.maxMessageLen"),
			MaxHistory:    v.GetInt("chat.maxHistory"),
		},
		Portal: PortalConfig{
			OnlineWindow:     v.GetDuration("portal.onlineWindow"),
			DefaultCapacity:  v.GetInt("portal.defaultCapacity"),
			DefaultCredits:   v.GetInt("portal.defaultCredits"),
			DefaultGroupSize: v.GetInt("portal.defaultGroupSize"),
			ActivityLimit:    v.GetInt("portal.activityLimit"),
		},
	}
}

// NewTestConfig returns the configuration used by the test suites.
func NewTestConfig() *Config {
	_ = os.Setenv("ENV", "TEST")
	conf := NewConfig()
	conf.SecretKey = "secret"
	return conf
}
