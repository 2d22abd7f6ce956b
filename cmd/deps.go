package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aksharjobs/matchscore/internal/ai/gemini"
	"github.com/aksharjobs/matchscore/internal/events"
	"github.com/aksharjobs/matchscore/internal/logger"
	"github.com/aksharjobs/matchscore/internal/matching"
	"github.com/aksharjobs/matchscore/internal/secrets"
	"github.com/aksharjobs/matchscore/internal/similarity"
	"github.com/aksharjobs/matchscore/internal/store"
	"github.com/aksharjobs/matchscore/internal/store/mongo"
	"github.com/aksharjobs/matchscore/internal/store/sqlite"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// env holds everything a command needs. close releases the connections.
type env struct {
	logger       *zap.Logger
	orchestrator *matching.Orchestrator
	closers      []func(context.Context) error
}

func (e *env) close(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			e.logger.Warn("closing resources", zap.Error(err))
		}
	}
	e.logger.Sync()
}

// exit is replaced in tests.
var exit = os.Exit

// fail logs msg, releases whatever was opened so far and exits with code.
func (e *env) fail(ctx context.Context, code int, msg string, fields ...zap.Field) {
	e.logger.Error(msg, fields...)
	e.close(ctx)
	exit(code)
}

// setup builds the logger and the matching pipeline from the configuration.
// Failures close what was opened and exit; setup then returns nil.
func setup(ctx context.Context) *env {
	lg, err := logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		Outputs: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	e := &env{logger: lg}

	config, err := getConfig()
	if err != nil {
		e.fail(ctx, 1, "getting a config", zap.Error(err))
		return nil
	}
	if config == nil || config.Store == nil {
		e.fail(ctx, 1, "store configuration is required")
		return nil
	}

	db, err := openStore(ctx, config.Store)
	if err != nil {
		e.fail(ctx, 1, "opening the document store",
			zap.String("driver", config.Store.Driver),
			zap.Error(err),
			zap.String("hint", "set store.driver to mongo or sqlite; mongo needs MATCHSCORE_MONGO_URI"),
		)
		return nil
	}
	e.closers = append(e.closers, db.Close)

	colls := config.Store.Collections
	if colls == nil {
		colls = &CollectionsConfig{}
	}
	cache := matching.NewCache(db.Collection(colls.Applications))
	if err := cache.EnsureIndexes(ctx); err != nil {
		e.fail(ctx, 1, "ensuring match cache indexes", zap.Error(err))
		return nil
	}
	sources := matching.NewStoreSources(
		db.Collection(colls.Users),
		db.Collection(colls.Resumes),
		db.Collection(colls.Jobs),
		lg,
	)

	generator, err := newGenerator(ctx, config.AI, lg)
	if err != nil {
		e.fail(ctx, 1, "creating the gemini client",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key"),
		)
		return nil
	}

	var vectorCache similarity.VectorCache
	if rc := redisConfig(config); rc != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
		})
		e.closers = append(e.closers, func(context.Context) error { return client.Close() })
		vectorCache = similarity.NewRedisVectorCache(client, rc.TTL)
		lg.Debug("using redis embedding cache", zap.String("address", rc.Address))
	}
	engine := similarity.NewEngine(generator.Embeddings(), vectorCache, lg)

	deps := matching.Deps{
		Cache:      cache,
		Resumes:    sources,
		Jobs:       sources,
		Similarity: engine,
		Logger:     lg,
	}

	if config.AI != nil && config.AI.Enabled {
		maxLogLength := 0
		if config.AI.Gemini != nil {
			maxLogLength = config.AI.Gemini.MaxLogLength
		}
		providerLogger := logger.WithAIFields(lg, "gemini", generator.Model())
		deps.Insights = gemini.NewInsightProvider(generator, providerLogger, maxLogLength)
		deps.InsightTimeout = config.AI.Timeout
		deps.SimilarityHint = config.AI.SimilarityHint
	}

	if config.Events != nil && config.Events.AMQP != nil && strings.TrimSpace(config.Events.AMQP.URL) != "" {
		publisher, err := events.DialAMQP(config.Events.AMQP.URL, config.Events.AMQP.Exchange, lg)
		if err != nil {
			e.fail(ctx, 1, "connecting to the event broker", zap.Error(err))
			return nil
		}
		e.closers = append(e.closers, func(context.Context) error { return publisher.Close() })
		deps.Publisher = publisher
	}

	e.orchestrator, err = matching.NewOrchestrator(deps)
	if err != nil {
		e.fail(ctx, 1, "building the matching pipeline", zap.Error(err))
		return nil
	}

	return e
}

func openStore(ctx context.Context, cfg *StoreConfig) (store.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "mongo", "mongodb":
		if cfg.Mongo == nil || strings.TrimSpace(cfg.Mongo.URI) == "" {
			return nil, errors.New("mongo uri is not configured")
		}
		return mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case "sqlite", "":
		path := app + ".db"
		if cfg.SQLite != nil && cfg.SQLite.Path != "" {
			path = cfg.SQLite.Path
		}
		return sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newGenerator(ctx context.Context, cfg *AIConfig, lg *zap.Logger) (*gemini.Generator, error) {
	gc := &GeminiConfig{}
	if cfg != nil && cfg.Gemini != nil {
		gc = cfg.Gemini
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gc.APIKey,
		File:  gc.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewGenerator(ctx, gemini.Options{
		APIKey:         apiKey,
		Model:          gc.Model,
		EmbeddingModel: gc.EmbeddingModel,
		MaxRetries:     gc.MaxRetries,
		Logger:         logger.WithAIFields(lg, "gemini", gc.Model),
	})
}

func redisConfig(config *Config) *RedisConfig {
	if config.Similarity == nil || config.Similarity.Redis == nil {
		return nil
	}
	if strings.TrimSpace(config.Similarity.Redis.Address) == "" {
		return nil
	}
	return config.Similarity.Redis
}
