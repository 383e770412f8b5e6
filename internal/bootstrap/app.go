package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/ai"
	"photoshoot-backend/internal/ai/openrouter"
	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/generations"
	"photoshoot-backend/internal/packages"
	"photoshoot-backend/internal/payments"
	"photoshoot-backend/internal/payments/yookassa"
	"photoshoot-backend/internal/presets"
	"photoshoot-backend/internal/realtime"
	"photoshoot-backend/internal/services/health"
	"photoshoot-backend/internal/shared/auth"
	"photoshoot-backend/internal/shared/config"
	"photoshoot-backend/internal/shared/server"
	"photoshoot-backend/internal/shared/storage/db"
	"photoshoot-backend/internal/shared/storage/object"
	localstore "photoshoot-backend/internal/shared/storage/object/local"
	s3store "photoshoot-backend/internal/shared/storage/object/s3"
	"photoshoot-backend/internal/shared/telemetry"
	"photoshoot-backend/internal/telegramauth"
	"photoshoot-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Registry *realtime.Registry
	Tasks    *generations.TaskSet

	UsersService       *users.Service
	GenerationsService *generations.Service
	PresetsService     *presets.Service
	PackagesService    *packages.Service
	PaymentsService    *payments.Service
	AuthService        *telegramauth.Service
}

type repos struct {
	users       users.Repo
	generations generations.Repo
	presets     presets.Repo
	packages    packages.Repo
	payments    payments.Repo
}

// openDB is replaced in tests.
var openDB = buildDB

// Build prepares dependencies and the router. Without a database every
// repository is in memory and shares one credit ledger. The pool is closed
// if any later step fails.
func Build(ctx context.Context, cfg config.Config) (_ *App, err error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := buildAI(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.Env)
	if err != nil {
		return nil, err
	}

	r := buildRepos(sqlDB)
	registry := realtime.NewRegistry()
	tasks := generations.NewTaskSet()

	userSvc := users.NewService(r.users, cfg.FreePhotoshootsCount)
	presetSvc := presets.NewService(r.presets, cfg.MaxSavedStyles)
	packageSvc := packages.NewService(r.packages)
	if err := packageSvc.Seed(ctx, cfg.Packages); err != nil {
		return nil, fmt.Errorf("seed packages: %w", err)
	}

	genSvc := generations.NewService(r.generations, userSvc, client, store, registry, tasks, cfg.PhotosPerPhotoshoot)
	genSvc.Styles = presetSvc

	bot := telegramauth.NewBotClient(cfg.TelegramAPIURL, cfg.BotToken)
	authSvc := telegramauth.NewService(userSvc, tokens, nil, bot, cfg.BotToken, cfg.VerificationCodeTTL, telegramauth.BotInfo{
		Username: cfg.BotUsername,
		Name:     cfg.BotName,
		ID:       cfg.TelegramBotID,
	})

	paySvc := &payments.Service{
		Repo:           r.payments,
		Packages:       packageSvc,
		Push:           registry,
		Notifier:       telegramauth.UserNotifier{Users: userSvc, Bot: bot},
		SiteURL:        cfg.SiteURL,
		VerifyWebhooks: cfg.Env == "production",
	}
	if cfg.YooKassaShopID != "" && cfg.YooKassaSecretKey != "" {
		gateway, err := yookassa.NewClient(cfg.YooKassaShopID, cfg.YooKassaSecretKey, cfg.YooKassaAPIURL)
		if err != nil {
			return nil, err
		}
		paySvc.Gateway = gateway
	} else {
		telemetry.Warn("bootstrap.payments_disabled", map[string]any{"reason": "YOOKASSA_SHOP_ID or YOOKASSA_SECRET_KEY empty"})
	}

	rtHandler := realtime.NewHandler(registry, tokens, userSvc, genSvc.StatusEvent, cfg.CORSAllowOrigin)

	app := &App{
		Config:             cfg,
		DB:                 sqlDB,
		Store:              store,
		Registry:           registry,
		Tasks:              tasks,
		UsersService:       userSvc,
		GenerationsService: genSvc,
		PresetsService:     presetSvc,
		PackagesService:    packageSvc,
		PaymentsService:    paySvc,
		AuthService:        authSvc,
	}
	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Tokens:            tokens,
		Health:            health.NewService(pinger),
		AuthHandler:       telegramauth.NewHandler(authSvc),
		UserHandler:       users.NewHandler(userSvc),
		GenerationHandler: generations.NewHandler(genSvc),
		PresetHandler:     presets.NewHandler(presetSvc),
		PackageHandler:    packages.NewHandler(packageSvc),
		PaymentHandler:    payments.NewHandler(paySvc),
		RealtimeHandler:   rtHandler,
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildRepos(sqlDB *sql.DB) repos {
	if sqlDB != nil {
		return repos{
			users:       &users.PGRepo{DB: sqlDB},
			generations: &generations.PGRepo{DB: sqlDB},
			presets:     &presets.PGRepo{DB: sqlDB},
			packages:    &packages.PGRepo{DB: sqlDB},
			payments:    &payments.PGRepo{DB: sqlDB},
		}
	}
	ledger := credits.NewMemoryLedger()
	return repos{
		users:       users.NewMemoryRepo(ledger),
		generations: generations.NewMemoryRepo(ledger),
		presets:     presets.NewMemoryRepo(),
		packages:    packages.NewMemoryRepo(),
		payments:    payments.NewMemoryRepo(ledger),
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_storage", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_storage", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildAI(cfg config.Config) (ai.Client, error) {
	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		telemetry.Warn("bootstrap.ai_offline", map[string]any{"reason": "OPENROUTER_API_KEY empty"})
		return ai.Offline{}, nil
	}
	return openrouter.NewClient(openrouter.Config{
		APIKey:      cfg.OpenRouterAPIKey,
		BaseURL:     cfg.OpenRouterBaseURL,
		PromptModel: cfg.PromptModel,
		ImageModel:  cfg.ImageModel,
		SiteURL:     cfg.SiteURL,
		Timeout:     cfg.AITimeout,
		Concurrency: cfg.SynthesisConcurrency,
	})
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
