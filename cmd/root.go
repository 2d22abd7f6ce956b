package cmd

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "matchscore"
)

type Config struct {
	Store      *StoreConfig      `mapstructure:"store"`
	AI         *AIConfig         `mapstructure:"ai"`
	Similarity *SimilarityConfig `mapstructure:"similarity"`
	Events     *EventsConfig     `mapstructure:"events"`
}

type StoreConfig struct {
	Driver      string             `mapstructure:"driver"`
	Mongo       *MongoConfig       `mapstructure:"mongo"`
	SQLite      *SQLiteConfig      `mapstructure:"sqlite"`
	Collections *CollectionsConfig `mapstructure:"collections"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type CollectionsConfig struct {
	Applications string `mapstructure:"applications"`
	Users        string `mapstructure:"users"`
	Resumes      string `mapstructure:"resumes"`
	Jobs         string `mapstructure:"jobs"`
}

type AIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SimilarityHint bool          `mapstructure:"similarity-hint"`
	Gemini         *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type SimilarityConfig struct {
	Redis *RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EventsConfig struct {
	AMQP *AMQPConfig `mapstructure:"amqp"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchscore scores how well a candidate's resume fits a job posting",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A missing .env is fine, the environment may be set up already.
	_ = godotenv.Load()

	envs := map[string]string{
		"store.mongo.uri":          "MATCHSCORE_MONGO_URI",
		"ai.gemini.api-key":        "GEMINI_API_KEY",
		"ai.gemini.api-key-file":   "GEMINI_API_KEY_FILE",
		"similarity.redis.address": "MATCHSCORE_REDIS_ADDRESS",
		"events.amqp.url":          "MATCHSCORE_AMQP_URL",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.sqlite.path", app+".db")
	viper.SetDefault("store.mongo.database", app)
	viper.SetDefault("store.collections.applications", "applications")
	viper.SetDefault("store.collections.users", "users")
	viper.SetDefault("store.collections.resumes", "resumes")
	viper.SetDefault("store.collections.jobs", "jobs")
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("similarity.redis.ttl", 24*time.Hour)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchscore.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and environment are enough when no config file exists.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
