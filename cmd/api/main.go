package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Reddit_Clone/internal/config"
	"Reddit_Clone/internal/handler"
	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/repository/mysql"
	redisrepo "Reddit_Clone/internal/repository/redis"
	"Reddit_Clone/internal/router"
	"Reddit_Clone/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := pkg.NewLogger(pkg.LogConfig{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(reg, logger)

	// MySQL
	db, err := mysql.New(mysql.Config{
		DSN:             cfg.MySQL.DSN,
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		AutoMigrate:     cfg.MySQL.AutoMigrate,
	})
	if err != nil {
		return err
	}
	defer func() { _ = mysql.Close(db) }()

	// 连接redis
	rdb, err := redisrepo.NewClient(redisrepo.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	jwt := pkg.NewJWTManager(pkg.JWTConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})

	// repositories
	users := &mysql.UserRepository{DB: db}
	things := &mysql.ThingRepository{DB: db}
	votes := &mysql.VoteRepository{DB: db}
	communities := &mysql.CommunityRepository{DB: db}
	members := &mysql.CommunityMemberRepository{DB: db}
	follows := &mysql.FollowRepository{DB: db}
	outbox := &mysql.OutboxRepository{DB: db}
	scoreCache := redisrepo.NewScoreCache(rdb)

	var icons service.IconStore
	if cfg.S3.Bucket != "" {
		store, err := pkg.NewS3Store(ctx, pkg.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return err
		}
		icons = store
	} else {
		logger.Warn("s3 bucket not configured, icon upload disabled")
	}

	var notifier service.Notifier
	smtpCfg := pkg.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	if smtpCfg.Enabled() {
		notifier = service.NewEmailService(smtpCfg)
	}

	// services
	userSvc := service.NewUserService(users, &redisrepo.SessionRepository{RDB: rdb, TTL: cfg.JWT.AccessTTL}, jwt, logger)
	followSvc := service.NewFollowService(follows, users, logger)
	thingSvc := service.NewThingService(things, communities, members, users, logger)
	voteSvc := service.NewVoteService(votes, scoreCache, &redisrepo.DistLock{RDB: rdb}, m, logger)
	moderationSvc := service.NewModerationService(things, communities, users, m, logger)
	communitySvc := service.NewCommunityService(communities, members, users, notifier, icons, logger)
	searchSvc := service.NewSearchService(&mysql.SearchRepository{DB: db}, things, users, logger)
	accountSvc := service.NewAccountService(&mysql.PrefsRepository{DB: db}, &mysql.SavedPostRepository{DB: db}, things, logger)

	// outbox -> kafka
	sender := service.LogSender(logger.Named("outbox"))
	producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	switch {
	case err == nil:
		defer func() { _ = producer.Close() }()
		sender = service.KafkaSender(producer)
	case errors.Is(err, pkg.ErrNoBrokers):
		logger.Warn("kafka brokers not configured, outbox events are only logged")
	default:
		return err
	}
	relayer := service.NewOutboxRelayer(outbox, sender, cfg.Jobs.OutboxBatchSize, cfg.Jobs.OutboxInterval, m, logger)
	go relayer.Run(ctx)

	scheduler, err := service.NewScheduler(ctx, cfg.Jobs.ReconcileSpec, logger, map[string]service.Job{
		"vote_score":   service.NewScoreReconciler(&mysql.ScoreReconcilerRepo{DB: db}, scoreCache, cfg.Jobs.ReconcileBatch, m, logger),
		"follow_count": service.NewFollowCountReconciler(&mysql.FollowCountReconcilerRepo{DB: db}, cfg.Jobs.ReconcileBatch, m, logger),
		"outbox_purge": service.JobFunc(relayer.Purge),
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	go reportDBStats(ctx, db, m)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	engine := router.Setup(router.Config{
		Mode:         cfg.Server.Mode,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Auth:         userSvc,
		RateLimiter:  limiter,
		Users:        handler.NewUserHandler(userSvc, jwt, logger),
		Accounts:     handler.NewAccountHandler(accountSvc, logger),
		Follows:      handler.NewFollowHandler(followSvc, logger),
		Things:       handler.NewThingHandler(thingSvc, voteSvc, moderationSvc, logger),
		Communities:  handler.NewCommunityHandler(communitySvc, thingSvc, moderationSvc, logger),
		Search:       handler.NewSearchHandler(searchSvc, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reportDBStats 每 15s 把连接池状态写进 metrics
func reportDBStats(ctx context.Context, db *gorm.DB, m *metrics.Metrics) {
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
			m.UpdateDBStats(sqlDB.Stats())
		}
	}
}
