package startup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/enerflux/voltcore/config"
	"github.com/enerflux/voltcore/internal/repositories/contractevent"
	"github.com/enerflux/voltcore/internal/repositories/energyperiod"
	"github.com/enerflux/voltcore/internal/repositories/meterreading"
	"github.com/enerflux/voltcore/internal/repositories/subscriptionperiod"
	"github.com/enerflux/voltcore/pkg/database"
	"github.com/enerflux/voltcore/pkg/events"
	"github.com/enerflux/voltcore/pkg/kafka"
	"github.com/enerflux/voltcore/pkg/middleware"
	"github.com/enerflux/voltcore/pkg/pipeline"
	"github.com/enerflux/voltcore/pkg/processor"
	"github.com/enerflux/voltcore/pkg/routes/billing"
	"github.com/enerflux/voltcore/pkg/routes/health"
	"github.com/enerflux/voltcore/pkg/tariff"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Version is stamped at build time.
var Version = "dev"

// App owns the assembled service: database, Kafka ingestion and the HTTP API.
type App struct {
	cfg    config.Config
	logger ectologger.Logger
	runner *Runner

	db              database.DB
	instance        *database.Instance
	producer        *kafka.Producer
	consumer        *kafka.Consumer
	pipeline        *pipeline.Service
	echo            *echo.Echo
	checker         *health.Checker
	tracingShutdown func(context.Context) error
}

// NewApp wires the service from configuration. Nothing connects until Start.
func NewApp(cfg config.Config, logger ectologger.Logger) *App {
	a := &App{
		cfg:             cfg,
		logger:          logger,
		runner:          NewRunner(logger, cfg.StartupMaxAttempts),
		tracingShutdown: tracing.Init(cfg.AppName),
	}
	a.runner.Add(&databaseDependency{app: a})
	a.runner.Add(&kafkaDependency{app: a})
	a.runner.Add(&httpDependency{app: a})
	return a
}

// Start brings the service up. It returns once every dependency is running;
// the HTTP server and the consumer keep serving in the background.
func (a *App) Start(ctx context.Context) error {
	return a.runner.Start(ctx)
}

// Stop shuts the service down in reverse order.
func (a *App) Stop(ctx context.Context) error {
	err := a.runner.Stop(ctx)
	if a.tracingShutdown != nil {
		if shutdownErr := a.tracingShutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	return err
}

// Pipeline exposes the billing service for embedding callers.
func (a *App) Pipeline() *pipeline.Service {
	return a.pipeline
}

type databaseDependency struct {
	app *App
}

func (d *databaseDependency) Name() string        { return "database" }
func (d *databaseDependency) DependsOn() []string { return nil }

func (d *databaseDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg

	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, d.app.logger)
	if err != nil {
		return err
	}
	d.app.db = db
	d.app.instance, _ = db.(*database.Instance)

	migrations := database.NewMigrationService(d.app.logger, &database.MigrationConfig{
		FolderPath: cfg.DatabaseMigrationFolderPath,
		Version:    uint(cfg.DatabaseMigrationVersion),
		Force:      cfg.DatabaseMigrationForce,
	})
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)
	return migrations.Migrate(databaseURL)
}

func (d *databaseDependency) Stop(_ context.Context) error {
	if d.app.db == nil {
		return nil
	}
	return d.app.db.Close()
}

type kafkaDependency struct {
	app *App
}

func (d *kafkaDependency) Name() string        { return "kafka" }
func (d *kafkaDependency) DependsOn() []string { return []string{"database"} }

func (d *kafkaDependency) Start(ctx context.Context) error {
	app := d.app
	cfg := app.cfg

	app.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, app.logger)
	emitter := events.NewEmitter(app.producer, app.logger)

	eventRepo := contractevent.NewRepository(app.db, app.logger)
	readingRepo := meterreading.NewRepository(app.db, app.logger)
	subscriptionRepo := subscriptionperiod.NewRepository(app.db, app.logger)
	energyRepo := energyperiod.NewRepository(app.db, app.logger)

	app.pipeline = pipeline.NewService(
		app.logger,
		eventRepo,
		readingRepo,
		subscriptionRepo,
		energyRepo,
		emitter,
		tariff.NoopEngine{},
		pipeline.Config{PricingEnabled: cfg.PricingEnabled},
	)

	if !cfg.KafkaConsumerEnabled {
		app.logger.WithContext(ctx).Info("Flux consumer disabled by configuration")
		return nil
	}

	proc := processor.NewProcessor(app.logger, eventRepo, readingRepo, app.pipeline, emitter)
	app.consumer = kafka.NewConsumer(cfg, app.logger, proc.HandleMessage)
	return app.consumer.Start(ctx)
}

func (d *kafkaDependency) Stop(_ context.Context) error {
	if d.app.consumer != nil {
		if err := d.app.consumer.Stop(); err != nil {
			return err
		}
	}
	if d.app.producer != nil {
		return d.app.producer.Close()
	}
	return nil
}

type httpDependency struct {
	app *App
}

func (d *httpDependency) Name() string        { return "http" }
func (d *httpDependency) DependsOn() []string { return []string{"database", "kafka"} }

func (d *httpDependency) Start(ctx context.Context) error {
	app := d.app
	cfg := app.cfg

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(app.logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(app.logger))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	var db *sqlx.DB
	if app.instance != nil {
		db = app.instance.DB
	}
	app.checker = health.NewChecker(db, d.consumerHealth(), Version)
	app.checker.RegisterRoutes(e)

	billing.Register(e.Group("/api/v1/billing"))

	app.echo = e
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			app.logger.WithContext(ctx).WithError(err).Error("HTTP server stopped")
		}
	}()

	app.checker.SetReady(true)
	return nil
}

// consumerHealth returns the consumer as the checker's probe target, nil when
// ingestion is disabled so the check is skipped rather than failing.
func (d *httpDependency) consumerHealth() interface{ Health() bool } {
	if d.app.consumer == nil {
		return nil
	}
	return d.app.consumer
}

func (d *httpDependency) Stop(ctx context.Context) error {
	if d.app.echo == nil {
		return nil
	}
	if d.app.checker != nil {
		d.app.checker.SetReady(false)
	}
	return d.app.echo.Shutdown(ctx)
}
