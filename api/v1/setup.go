package v1

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/benchmarks"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/config"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/dashboard"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/database"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/forecasting"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/metrics"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications/websocket"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/planning"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/ratelimit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/teams"
	"github.com/Kaustab2003/co2-emission-forecasting/pkg/storage"
)

// Components holds every wired service of the emissions platform
type Components struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Gorm    *gorm.DB
	Metrics *metrics.Registry

	Recorder audit.Recorder
	Hub      *websocket.Manager
	Notifier notifications.Notifier
	Cache    *dashboard.StatsCache
	Archive  storage.S3Client
	Model    emissions.Predictor

	Auth        *auth.Service
	Companies   *companies.Service
	Comparator  *benchmarks.Comparator
	Dashboard   *dashboard.Service
	Forecasting *forecasting.Service
	Planning    *planning.Service
	Reports     *reports.Service
	Teams       *teams.Service
	Schedule    *scheduler.ScheduleManager
	Limiter     *ratelimit.Limiter

	closers []func()
}

// NewLogger builds a production zap logger at level. "debug" selects the
// development config.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Setup connects to the database and AWS, then wires every service
func Setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
	}

	// =====================================================
	// Storage
	// =====================================================

	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("db", cfg.Database.DBName),
	)
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if cfg.Database.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	}
	c.DB = db
	c.closers = append(c.closers, func() { _ = db.Close() })

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}
	c.Gorm = gormDB

	clients, err := newAWSClients(ctx, &cfg.AWS)
	if err != nil {
		c.Close()
		return nil, err
	}

	if clients.dynamo != nil && cfg.AWS.AuditTable != "" {
		c.Recorder = audit.NewDynamoRecorder(clients.dynamo, cfg.AWS.AuditTable)
		logger.Info("Audit log stored in DynamoDB", zap.String("table", cfg.AWS.AuditTable))
	} else {
		c.Recorder = audit.NewPostgresRecorder(db)
	}

	var bucket *storage.BucketClient
	if clients.s3 != nil && cfg.AWS.ReportBucket != "" {
		bucket = storage.NewS3Client(clients.s3, cfg.AWS.ReportBucket)
		c.Archive = bucket
	}

	// =====================================================
	// Notifications and cache
	// =====================================================

	c.Hub = websocket.NewManager(logger)
	c.closers = append(c.closers, c.Hub.Close)

	notifiers := notifications.MultiNotifier{notifications.NewLogNotifier(logger), c.Hub}
	if clients.sns != nil && cfg.AWS.SNSTopicARN != "" {
		notifiers = append(notifiers, notifications.NewSNSPublisher(clients.sns, cfg.AWS.SNSTopicARN))
	}
	c.Notifier = notifiers

	var cache dashboard.Cache
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
			_ = rdb.Close()
		} else {
			cache = dashboard.NewRedisCache(rdb, cfg.Cache.TTL, "co2:")
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}
	if cache == nil {
		memory := dashboard.NewAggregateCache(cfg.Cache.TTL)
		c.closers = append(c.closers, memory.Stop)
		cache = memory
	}
	c.Cache = dashboard.NewStatsCache(cache, func(hit bool) {
		c.Metrics.ObserveCache("dashboard", hit)
	})

	// =====================================================
	// Model
	// =====================================================

	location := cfg.Forecasting.ModelPath
	if location == "" && cfg.Forecasting.ModelS3Key != "" && cfg.AWS.ReportBucket != "" {
		location = fmt.Sprintf("s3://%s/%s", cfg.AWS.ReportBucket, cfg.Forecasting.ModelS3Key)
	}
	var downloader storage.Downloader
	if clients.s3 != nil {
		downloader = manager.NewDownloader(clients.s3)
	}
	model, err := forecasting.LoadModel(ctx, location, downloader, logger)
	if err != nil {
		logger.Warn("Regression model unavailable, predictions disabled", zap.Error(err))
	} else {
		c.Model = model
	}

	// =====================================================
	// Services
	// =====================================================

	c.Auth = auth.NewService(
		auth.NewPostgresRepository(db),
		auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL),
		c.Recorder,
		logger,
	)

	companyRepo := companies.NewPostgresRepository(db)
	external := companies.NewExternalSource(cfg.External.EmissionAPIURL, cfg.External.Timeout, c.Metrics, logger)
	c.Companies = companies.NewService(companyRepo, external, c.Recorder, logger)
	c.Comparator = benchmarks.NewComparator(companyRepo, logger)

	c.Dashboard = dashboard.NewService(c.Companies, c.Comparator, c.Cache, c.Model, dashboard.Options{
		Years:  cfg.Forecasting.DefaultYears,
		Target: cfg.Forecasting.DefaultTarget,
	}, logger)
	c.Companies.OnChange(c.Dashboard.InvalidateCompany)

	c.Forecasting = forecasting.NewService(c.Companies, c.Model, c.Cache, c.Notifier, c.Metrics, forecasting.Options{
		DefaultYears:  cfg.Forecasting.DefaultYears,
		DefaultTarget: cfg.Forecasting.DefaultTarget,
	}, logger)

	store := planning.NewGormStore(gormDB)
	if cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to migrate planning tables: %w", err)
		}
	}
	c.Planning = planning.NewService(store, c.Companies, c.Model, c.Recorder, logger)

	c.Teams = teams.NewService(teams.NewPostgresRepository(db), c.Auth, c.Companies, c.Recorder, c.Notifier, logger)

	c.Reports = reports.NewService(c.Companies, c.Dashboard, c.Recorder, logger)
	if err := c.wireDelivery(clients, bucket); err != nil {
		c.Close()
		return nil, err
	}

	c.Limiter = ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	return c, nil
}

func (c *Components) wireDelivery(clients *awsClients, bucket *storage.BucketClient) error {
	cfg := c.Config

	var smtpSender, sesSender scheduler.EmailSender
	if s := scheduler.NewSMTPSender(scheduler.EmailConfig{
		SMTPHost:    cfg.Email.SMTPHost,
		SMTPPort:    cfg.Email.SMTPPort,
		Username:    cfg.Email.Username,
		Password:    cfg.Email.Password,
		FromAddress: cfg.Email.From,
		FromName:    "CO2 Emission Forecasting",
	}); s != nil {
		smtpSender = s
	}
	if clients.ses != nil {
		if s := scheduler.NewSESSender(clients.ses, cfg.AWS.SESSender); s != nil {
			sesSender = s
		}
	}

	delivery := scheduler.NewDeliveryManager(smtpSender, sesSender, c.Metrics, c.Logger)

	var archive storage.S3Client
	if bucket != nil {
		archive = bucket
	}
	executor := scheduler.NewExecutor(c.Reports, delivery, archive, c.Recorder, c.Notifier, c.Logger,
		scheduler.DefaultExecutorConfig())

	method, err := scheduler.ParseDeliveryMethod(cfg.Reports.DeliveryMethod)
	if err != nil {
		return fmt.Errorf("invalid report delivery method: %w", err)
	}
	if err := scheduler.ValidateCronExpression(cfg.Reports.Schedule); err != nil {
		return fmt.Errorf("invalid report schedule: %w", err)
	}
	c.Schedule = scheduler.NewScheduleManager(executor, reports.NewPostgresRecipientRepository(c.DB), c.Logger,
		scheduler.ScheduleManagerConfig{
			CronExpression: cfg.Reports.Schedule,
			DeliveryMethod: method,
			WebhookURL:     cfg.Reports.WebhookURL,
			MaxConcurrent:  cfg.Reports.Workers,
			RunTimeout:     30 * time.Minute,
		})
	c.Reports.WithDelivery(executor, c.Schedule)
	return nil
}

// Close releases connections and background goroutines in reverse order
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// =====================================================
// AWS
// =====================================================

type awsClients struct {
	s3     *s3.Client
	ses    *sesv2.Client
	sns    *sns.Client
	dynamo *dynamodb.Client
}

func newAWSClients(ctx context.Context, cfg *config.AWSConfig) (*awsClients, error) {
	if !cfg.Enabled() {
		return &awsClients{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var endpoint *string
	if cfg.Endpoint != "" {
		endpoint = aws.String(cfg.Endpoint)
	}

	clients := &awsClients{}
	if cfg.ReportBucket != "" {
		clients.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = endpoint != nil
		})
	}
	if cfg.SESSender != "" {
		clients.ses = sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) { o.BaseEndpoint = endpoint })
	}
	if cfg.SNSTopicARN != "" {
		clients.sns = sns.NewFromConfig(awsCfg, func(o *sns.Options) { o.BaseEndpoint = endpoint })
	}
	if cfg.AuditTable != "" {
		clients.dynamo = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) { o.BaseEndpoint = endpoint })
	}
	return clients, nil
}
