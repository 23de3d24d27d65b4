package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rhealth-backend/application/broadcast"
	"rhealth-backend/application/dispatch"
	"rhealth-backend/application/ports"
	"rhealth-backend/application/processor"
	"rhealth-backend/infrastructure/config"
	"rhealth-backend/infrastructure/messaging"
	"rhealth-backend/infrastructure/messaging/eventbridge"
	"rhealth-backend/infrastructure/persistence/decorators"
	ddbstore "rhealth-backend/infrastructure/persistence/dynamodb"
	"rhealth-backend/infrastructure/persistence/memory"
	"rhealth-backend/infrastructure/persistence/sqlite"
	"rhealth-backend/interfaces/websocket"
	"rhealth-backend/pkg/auth"
	"rhealth-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsEventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "rhealth-backend"

// Logging pairs the root logger with the level handle the config watcher adjusts
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// provideLogging creates a structured logger appropriate for the environment.
func provideLogging(cfg *config.Config) (Logging, func(), error) {
	logger, level, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return Logging{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cleanup := func() { _ = logger.Sync() }
	return Logging{Logger: logger, Level: level}, cleanup, nil
}

func provideLogger(l Logging) *zap.Logger {
	return l.Logger
}

func provideLogLevel(l Logging) zap.AtomicLevel {
	return l.Level
}

// provideMetrics returns nil when metrics are disabled; every consumer accepts that.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("rhealth")
}

func provideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.TracingEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// loadAWSConfig creates the AWS configuration. It is only called for the
// drivers that need it so a local run never touches the credential chain.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx, awsConfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// BaseStore is the undecorated store selected by STORE_DRIVER
type BaseStore struct {
	ports.PatientStore
}

// provideBaseStore opens the backing store selected by STORE_DRIVER
func provideBaseStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (BaseStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Info("Using in-memory patient store")
		return BaseStore{memory.NewPatientStore()}, func() {}, nil

	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return BaseStore{}, nil, err
		}
		logger.Info("Using SQLite patient store", zap.String("path", cfg.SQLitePath))
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close SQLite store", zap.Error(err))
			}
		}
		return BaseStore{store}, cleanup, nil

	case config.StoreDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return BaseStore{}, nil, err
		}
		client := awsDynamodb.NewFromConfig(awsCfg, func(o *awsDynamodb.Options) {
			o.HTTPClient = &http.Client{Timeout: 15 * time.Second}
		})
		logger.Info("Using DynamoDB patient store", zap.String("table", cfg.DynamoDBTable))
		return BaseStore{ddbstore.NewPatientRepository(client, cfg.DynamoDBTable, logger)}, func() {}, nil
	}
	return BaseStore{}, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// provideStore decorates the base store.
// Order: Base -> Circuit Breaker -> Instrumentation
func provideStore(
	cfg *config.Config,
	base BaseStore,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) ports.PatientStore {
	var decorated ports.PatientStore = base.PatientStore
	if cfg.StoreDriver != config.StoreMemory {
		decorated = decorators.NewCircuitBreakerStore(decorated, cfg.Breaker, logger)
	}
	return decorators.NewInstrumentedStore(decorated, metrics, tracer, logger)
}

// providePublisher publishes to EventBridge when a bus is configured
func providePublisher(
	ctx context.Context,
	cfg *config.Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) (ports.EventPublisher, func(), error) {
	if cfg.EventBusName == "" {
		return messaging.NoopPublisher{}, func() {}, nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := awsEventbridge.NewFromConfig(awsCfg, func(o *awsEventbridge.Options) {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	})

	bus := eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, metrics, logger)
	async := messaging.NewAsyncPublisher(bus, cfg.WebSocket.EventQueueSize, metrics, logger)
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := async.Close(closeCtx); err != nil {
			logger.Warn("Event queue not drained", zap.Error(err))
		}
	}
	return async, cleanup, nil
}

func provideHub(cfg *config.Config, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(cfg.WebSocket.MaxConnections, logger)
}

func provideCoordinator(
	store ports.PatientStore,
	hub *websocket.Hub,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *broadcast.Coordinator {
	return broadcast.NewCoordinator(store, hub, metrics, tracer, logger)
}

func provideProcessor(
	store ports.PatientStore,
	coordinator *broadcast.Coordinator,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *processor.Processor {
	return processor.NewProcessor(store, coordinator, publisher, metrics, tracer, logger)
}

func provideDispatcher(
	cfg *config.Config,
	hub *websocket.Hub,
	proc *processor.Processor,
	coordinator *broadcast.Coordinator,
	metrics *observability.Collector,
	logger *zap.Logger,
) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(cfg.WebSocket.EventQueueSize, hub, proc, coordinator, metrics, logger)
}

// provideJWTValidator returns nil when authentication is disabled
func provideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.AuthEnabled {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}

func provideServer(
	cfg *config.Config,
	hub *websocket.Hub,
	dispatcher *dispatch.Dispatcher,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) *websocket.Server {
	serverCfg := websocket.DefaultServerConfig()
	serverCfg.AllowedOrigins = cfg.AllowedOrigins
	serverCfg.Client = websocket.ClientConfig{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
	}
	return websocket.NewServer(hub, dispatcher, validator, serverCfg, metrics, logger)
}
