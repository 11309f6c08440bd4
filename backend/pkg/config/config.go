package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Discord
	DiscordBotToken string
	OwnerID         string
	CommandPrefix   string
	VoiceChannel    string // Designated voice channel name for auto-join

	// AI providers (OpenAI-compatible, tried in order)
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
	GroqAPIKey       string
	GroqModel        string
	ProviderTimeout  time.Duration // Per-provider deadline
	ChatTimeout      time.Duration // Overall deadline across the chain

	// Speech
	WhisperModel string
	TTSModel     string

	// Voice pipeline tuning
	SilenceTimeout    time.Duration // Quiet gap that closes an utterance
	MinUtteranceBytes int           // Shorter buffers are discarded as noise
	MaxBufferBytes    int           // Hard cap before a force flush
	RMSThreshold      float64       // Loudness gate on 16-bit samples
	SegmentTick       time.Duration
	KeepAliveInterval time.Duration
	EnforceInterval   time.Duration // Designated-channel presence scan
	RejoinDelay       time.Duration
	TimeoutDefaultMin int
	TimeoutCapMin     int

	// Storage
	DataDir             string
	FirestoreProjectID  string
	FirestoreCredsFile  string
	BackupDir           string
	BackupInterval      time.Duration
	BackupKeep          int
	SaveDrainTimeout    time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "7860"),
		Env:             getEnv("ENV", "development"),
		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN", ""),
		OwnerID:         getEnv("BOT_OWNER_ID", ""),
		CommandPrefix:   getEnv("COMMAND_PREFIX", "!"),
		VoiceChannel:    getEnv("VOICE_CHANNEL_NAME", "Manga_bot"),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		GroqModel:        getEnv("GROQ_MODEL", "llama3-8b-8192"),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ChatTimeout:      getEnvDuration("CHAT_TIMEOUT", 60*time.Second),

		WhisperModel: getEnv("WHISPER_MODEL", "whisper-1"),
		TTSModel:     getEnv("TTS_MODEL", "tts-1"),

		SilenceTimeout:    getEnvDuration("SILENCE_TIMEOUT", time.Second),
		MinUtteranceBytes: getEnvInt("MIN_UTTERANCE_BYTES", 48000),
		MaxBufferBytes:    getEnvInt("MAX_BUFFER_BYTES", 3840000),
		RMSThreshold:      getEnvFloat("RMS_THRESHOLD", 150),
		SegmentTick:       getEnvDuration("SEGMENT_TICK", 50*time.Millisecond),
		KeepAliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 240*time.Second),
		EnforceInterval:   getEnvDuration("ENFORCE_INTERVAL", 5*time.Second),
		RejoinDelay:       getEnvDuration("REJOIN_DELAY", 3*time.Second),
		TimeoutDefaultMin: getEnvInt("TIMEOUT_DEFAULT_MINUTES", 5),
		TimeoutCapMin:     getEnvInt("TIMEOUT_CAP_MINUTES", 60),

		DataDir:            getEnv("DATA_DIR", "data"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		BackupDir:          getEnv("BACKUP_DIR", "backups"),
		BackupInterval:     getEnvDuration("BACKUP_INTERVAL", time.Hour),
		BackupKeep:         getEnvInt("BACKUP_KEEP", 48),
		SaveDrainTimeout:   getEnvDuration("SAVE_DRAIN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("SILENCE_TIMEOUT must be positive")
	}
	if c.MinUtteranceBytes <= 0 {
		return fmt.Errorf("MIN_UTTERANCE_BYTES must be positive")
	}
	if c.MaxBufferBytes < c.MinUtteranceBytes {
		return fmt.Errorf("MAX_BUFFER_BYTES must be at least MIN_UTTERANCE_BYTES")
	}
	if c.TimeoutCapMin < c.TimeoutDefaultMin {
		return fmt.Errorf("TIMEOUT_CAP_MINUTES must be at least TIMEOUT_DEFAULT_MINUTES")
	}
	if c.BackupKeep <= 0 {
		return fmt.Errorf("BACKUP_KEEP must be positive")
	}
	// AI and speech keys are optional; the related features degrade when absent
	return nil
}

// UseFirestore reports whether the cloud document backend should be selected
func (c *Config) UseFirestore() bool {
	return c.FirestoreProjectID != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
