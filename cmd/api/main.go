package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/routes"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/damoang/angple-messenger/pkg/jwt"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	pkgredis "github.com/damoang/angple-messenger/pkg/redis"
	"github.com/damoang/angple-messenger/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// APP_ENV 는 OS 환경변수에서만 읽음
	env := config.Environment()
	dotenvFiles, dotenvErr := config.LoadDotEnv(".", env)

	// 로거 초기화
	pkglogger.InitStructured(env)
	log := pkglogger.Component("main")
	if dotenvErr != nil {
		log.Fatal().Err(dotenvErr).Msg("failed to load .env files")
	}
	log.Info().Str("env", env).Strs("env_files", dotenvFiles).Msg("starting")

	// 설정 로드
	configPath := config.ConfigPath(env)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	pkglogger.SetLevel(cfg.Log.Level)
	config.LogResolved(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB 연결
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle")
	}
	go recordDBStats(ctx, db)

	// Redis 연결 (선택)
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, pkgredis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
		log.Info().Str("host", cfg.Redis.Host).Msg("connected to Redis")
	}

	keyKind, err := domain.ParseActorKeyKind(cfg.Identity.KeyKind)
	if err != nil {
		log.Fatal().Err(err).Msg("identity.key_kind")
	}

	// 엔진은 허브 생성 뒤에 만들어지므로 지연 참조
	var engine service.ConversationEngine
	var hub *ws.Hub
	if cfg.Broadcast.Driver == "websocket" {
		var fanout *goredis.Client
		if cfg.Broadcast.WebSocket.RedisFanout {
			fanout = redisClient
		}
		hub = ws.NewHub(ws.HubOptions{
			Redis:        fanout,
			RedisChannel: cfg.Broadcast.WebSocket.RedisChannel,
			Authorize: func(ctx context.Context, userID string, ch broadcast.Channel) bool {
				return engine.CanSubscribe(ctx, userID, ch)
			},
			Logger: pkglogger.Component("ws"),
		})
		go hub.Run()
	}

	deps := broadcast.Deps{
		Redis:  redisClient,
		Logger: pkglogger.Component("broadcast"),
	}
	if hub != nil {
		deps.Socket = hub
	}
	driver, err := broadcast.NewDriver(ctx, cfg.Broadcast, deps)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Broadcast.Driver).Msg("broadcast driver")
	}
	broadcaster := broadcast.NewBroadcaster(driver, cfg.Broadcast.Enabled, pkglogger.Component("broadcast"))

	var attachments service.AttachmentSubsystem
	if cfg.Uploads.Enabled {
		switch cfg.Uploads.Driver {
		case "s3":
			s3cfg := cfg.Uploads.S3
			objects := storage.NewS3Client(storage.S3Config{
				Endpoint:        s3cfg.Endpoint,
				Region:          s3cfg.Region,
				AccessKeyID:     s3cfg.AccessKeyID,
				SecretAccessKey: s3cfg.SecretAccessKey,
				Bucket:          s3cfg.Bucket,
				PublicURL:       s3cfg.PublicURL,
				BasePath:        s3cfg.BasePath,
				ForcePathStyle:  s3cfg.ForcePathStyle,
			})
			attachments = service.NewS3AttachmentStore(objects, cfg.Uploads, pkglogger.Component("attachments"))
		default:
			attachments = service.NewDiskAttachmentStore(cfg.Uploads)
		}
	}

	engine = service.NewConversationEngine(service.EngineDeps{
		Conversations:  repository.NewConversationRepository(db),
		Messages:       repository.NewMessageRepository(db),
		Statuses:       repository.NewStatusRepository(db),
		Transactor:     repository.NewTransactor(db),
		Hooks:          hook.NewRegistry(pkglogger.Component("hook")),
		Broadcaster:    broadcaster,
		Attachments:    attachments,
		ActorKeyKind:   keyKind,
		Editing:        service.EditPolicyFromConfig(cfg.Editing),
		Messaging:      service.MessagingOptionsFromConfig(cfg.Messaging),
		FallbackLocale: cfg.I18n.DefaultLocale,
		Logger:         pkglogger.Component("engine"),
	})

	// i18n Bundle
	i18nBundle, err := i18n.Load(i18n.Locale(cfg.I18n.DefaultLocale), cfg.I18n.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.I18n.Dir).Msg("i18n")
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiresIn)*time.Second)

	// Gin 라우터 생성
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.I18n(i18nBundle))

	if cfg.Uploads.Enabled && cfg.Uploads.Driver == "disk" {
		router.Static(cfg.Uploads.BaseURL, cfg.Uploads.Dir)
	}

	paging := handler.PagingFromConfig(cfg.Messaging)
	handlers := routes.Handlers{
		Conversation: handler.NewConversationHandler(engine, i18nBundle, paging),
		Message:      handler.NewMessageHandler(engine, i18nBundle, paging),
	}
	if hub != nil {
		handlers.WS = handler.NewWSHandler(hub, cfg.Broadcast.WebSocket.AllowedOrigins)
	}
	var extra []gin.HandlerFunc
	if cfg.RateLimit.Enabled && redisClient != nil {
		extra = append(extra, middleware.RateLimitWrites(redisClient, middleware.RateLimitOptions{
			WritesPerMinute: cfg.RateLimit.WritesPerMinute,
			KeyPrefix:       cfg.RateLimit.KeyPrefix,
			Bundle:          i18nBundle,
		}))
	}
	health := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
	routes.Setup(router, handlers, middleware.JWTAuth(jwtManager, keyKind, i18nBundle), health, extra...)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("broadcast", driver.Name()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	// 큐에 남은 이벤트 전송 후 드라이버 종료
	if err := broadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("broadcaster close")
	}
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("database close")
	}
}

func corsConfig(allowOrigins string) cors.Config {
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	return cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Language"},
		MaxAge:           12 * time.Hour,
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.Database.LogQueries {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path)
	default:
		mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
		}
		if mysqlCfg.Params == nil {
			mysqlCfg.Params = map[string]string{}
		}
		if cfg.Database.TimeZone != "" {
			mysqlCfg.Params["time_zone"] = cfg.Database.TimeZone
		}
		dialector = mysql.Open(mysqlCfg.FormatDSN())
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 는 단일 writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

// recordDBStats DB 커넥션 게이지 주기적 갱신
func recordDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			middleware.RecordDBStats(sqlDB.Stats())
		}
	}
}
