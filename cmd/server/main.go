package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medical-record-versioning/internal/adapters"
	"medical-record-versioning/internal/api"
	"medical-record-versioning/internal/clock"
	"medical-record-versioning/internal/config"
	"medical-record-versioning/internal/database"
	"medical-record-versioning/internal/domain/repositories"
	"medical-record-versioning/internal/repositories/gormrepo"
	"medical-record-versioning/internal/repositories/mongorepo"
	"medical-record-versioning/internal/services"
	"medical-record-versioning/pkg/logger"
	"medical-record-versioning/pkg/metrics"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-playground/validator/v10"
	flags "github.com/jessevdk/go-flags"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	opts, err := config.ParseOptions(os.Args[1:])
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, log)
	if err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// closer releases one resource on shutdown.
type closer struct {
	name  string
	close func(ctx context.Context) error
}

func run(cfg *config.Configuration, log *zap.Logger) error {
	config.LogConfig(log)

	var closers []closer
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].close(ctx); err != nil {
				log.Warn("Shutdown step failed", zap.String("step", closers[i].name), zap.Error(err))
			}
		}
	}()

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	closers = append(closers, closer{"database", func(context.Context) error { return sqlDB.Close() }})

	auditRepo, closeAudit, err := openAuditRepository(cfg.Audit, db, log)
	if err != nil {
		return err
	}
	if closeAudit != nil {
		closers = append(closers, closer{"audit store", closeAudit})
	}

	store, closeStore, err := openObjectStore(cfg.Backup, log)
	if err != nil {
		return err
	}
	if closeStore != nil {
		closers = append(closers, closer{"object store", closeStore})
	}

	clk := clock.New()
	validate := validator.New()
	collector := metrics.NewMetricsCollector()

	directory := services.NewPatientDirectory(gormrepo.NewPatientRepository(db), gormrepo.NewDoctorRepository(db), validate, log)
	records := services.NewRecordStore(gormrepo.NewMedicalRecordRepository(db), directory, clk, log)
	versions := services.NewVersionStore(gormrepo.NewRecordVersionRepository(db, cfg.Records.VersionAppendRetry), clk, log)
	ledger := services.NewAuditLedger(auditRepo, clk, log, services.AuditLedgerOptions{
		WriteTimeout:   cfg.Audit.WriteTimeout.Duration,
		ActivityWindow: cfg.Audit.ActivityWindow.Duration,
		DefaultLimit:   cfg.Audit.DefaultLimit,
		MaxLimit:       cfg.Audit.MaxLimit,
	})
	gate := services.NewAccessGate()

	resolver, err := services.NewIdentityResolver(directory, cfg.Identity.AdminIDs, log)
	if err != nil {
		return err
	}

	deps := services.RecordServiceDeps{
		Tx:        gormrepo.NewTransactor(db),
		Records:   records,
		Versions:  versions,
		Ledger:    ledger,
		Gate:      gate,
		Directory: directory,
		Validate:  validate,
		Metrics:   collector,
		Clock:     clk,
		Logger:    log,
	}

	if store != nil {
		queue := adapters.NewInMemoryQueueAdapter(log, 256, 2*time.Second)
		closers = append(closers, closer{"queue", func(context.Context) error { return queue.Close() }})

		backups := services.NewBackupService(records, versions, directory, store, queue, cfg.Backup.QueueName, clk, log)
		if err := backups.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start backup service: %w", err)
		}
		closers = append(closers, closer{"backup service", backups.Stop})

		deps.Backups = backups
		deps.Attachments = store
	} else {
		log.Warn("Backups are disabled; backup and attachment endpoints will fail")
	}

	recordService := services.NewRecordService(deps, services.RecordServiceOptions{
		DefaultPageSize:     cfg.Records.DefaultPageSize,
		MaxPageSize:         cfg.Records.MaxPageSize,
		DefaultHistoryLimit: cfg.Records.DefaultHistoryLimit,
		MaxAttachmentBytes:  cfg.Records.MaxAttachmentBytes,
	})

	app := api.NewRouter(api.RouterDeps{
		Server:    cfg.Server,
		Logger:    log,
		Metrics:   collector,
		Resolver:  resolver,
		Records:   recordService,
		Audit:     services.NewAuditQueryService(ledger, gate, log),
		Directory: directory,
		DB:        sqlDB,
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Server.Port))
		listenErr <- app.Listen(":" + cfg.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return err
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.ShutdownWithContext(ctx)
}

// openAuditRepository returns the audit store selected by cfg.Driver.
func openAuditRepository(cfg config.AuditConfig, db *gorm.DB, log *zap.Logger) (repositories.AuditEntryRepositoryContract, func(context.Context) error, error) {
	switch cfg.Driver {
	case "postgres", "gorm":
		return gormrepo.NewAuditEntryRepository(db), nil, nil
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, nil, errors.New("audit.mongo_uri is required for the mongo audit driver")
		}
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		repo := mongorepo.NewAuditEntryRepository(client, cfg.MongoDatabase, cfg.MongoCollection)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("failed to create audit indexes: %w", err)
		}
		log.Info("Audit entries stored in MongoDB", zap.String("database", cfg.MongoDatabase), zap.String("collection", cfg.MongoCollection))
		return repo, client.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// openObjectStore returns the store used for backups and attachments, or nil
// when backups are disabled.
func openObjectStore(cfg config.BackupConfig, log *zap.Logger) (adapters.ObjectStore, func(context.Context) error, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	switch cfg.Driver {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, nil, errors.New("backup.s3_bucket is required for the s3 backup driver")
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.S3Region)})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		log.Info("Backups stored in S3", zap.String("bucket", cfg.S3Bucket), zap.String("prefix", cfg.S3Prefix))
		return adapters.NewS3Store(sess, cfg.S3Bucket, cfg.S3Prefix), nil, nil
	case "leveldb":
		store, err := adapters.OpenLevelDBStore(cfg.LevelDBPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Backups stored in LevelDB", zap.String("path", cfg.LevelDBPath))
		return store, func(context.Context) error { return store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backup driver %q", cfg.Driver)
	}
}
