package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	DatabaseURL     string
	CORSAllowOrigin []string
	SiteURL         string

	JWTSecret      string
	AccessTokenTTL time.Duration

	BotToken            string
	BotUsername         string
	BotName             string
	TelegramBotID       string
	TelegramAPIURL      string
	VerificationCodeTTL time.Duration

	OpenRouterAPIKey     string
	OpenRouterBaseURL    string
	PromptModel          string
	ImageModel           string
	AITimeout            time.Duration
	SynthesisConcurrency int

	PhotosPerPhotoshoot  int
	FreePhotoshootsCount int
	MaxSavedStyles       int
	Packages             []PackageConfig

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	YooKassaShopID    string
	YooKassaSecretKey string
	YooKassaAPIURL    string
}

// PackageConfig describes a purchasable photoshoot bundle seeded at startup.
type PackageConfig struct {
	Name        string
	Photoshoots int
	PriceRub    int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8000"),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     dbURL,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		SiteURL:         getEnv("SITE_URL", "http://localhost:3000"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*7)) * time.Minute,

		BotToken:            getEnv("BOT_TOKEN", ""),
		BotUsername:         getEnv("BOT_USERNAME", ""),
		BotName:             getEnv("BOT_NAME", "PhotoSession Bot"),
		TelegramBotID:       getEnv("TELEGRAM_BOT_ID", ""),
		TelegramAPIURL:      getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		VerificationCodeTTL: time.Duration(getEnvInt("VERIFICATION_CODE_EXPIRE_MINUTES", 5)) * time.Minute,

		OpenRouterAPIKey:     getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		PromptModel:          getEnv("PROMPT_MODEL", "anthropic/claude-3.5-sonnet"),
		ImageModel:           getEnv("IMAGE_MODEL", "google/gemini-2.0-flash-001"),
		AITimeout:            time.Duration(getEnvInt("AI_TIMEOUT_SECONDS", 120)) * time.Second,
		SynthesisConcurrency: getEnvInt("SYNTHESIS_CONCURRENCY", 1),

		PhotosPerPhotoshoot:  getEnvInt("PHOTOS_PER_PHOTOSHOOT", 4),
		FreePhotoshootsCount: getEnvInt("FREE_PHOTOSHOOTS_COUNT", 2),
		MaxSavedStyles:       getEnvInt("MAX_SAVED_STYLES", 4),
		Packages:             loadPackages(),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		YooKassaShopID:    getEnv("YOOKASSA_SHOP_ID", ""),
		YooKassaSecretKey: getEnv("YOOKASSA_SECRET_KEY", ""),
		YooKassaAPIURL:    getEnv("YOOKASSA_API_URL", "https://api.yookassa.ru/v3"),
	}
}

var defaultPackages = []PackageConfig{
	{Name: "Стартовый", Photoshoots: 3, PriceRub: 299},
	{Name: "Бизнес", Photoshoots: 10, PriceRub: 799},
	{Name: "Профессиональный", Photoshoots: 30, PriceRub: 1999},
	{Name: "Безлимитный", Photoshoots: 100, PriceRub: 4999},
}

func loadPackages() []PackageConfig {
	out := make([]PackageConfig, 0, len(defaultPackages))
	for i, def := range defaultPackages {
		prefix := "PACKAGE_" + strconv.Itoa(i+1) + "_"
		out = append(out, PackageConfig{
			Name:        getEnv(prefix+"NAME", def.Name),
			Photoshoots: getEnvInt(prefix+"PHOTOSHOOTS", def.Photoshoots),
			PriceRub:    getEnvInt(prefix+"PRICE", def.PriceRub),
		})
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
