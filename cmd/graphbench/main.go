// Package main implements the graphbench binary. It serves the experiment
// API that runs every social-app workload against SQLite and Neo4j side
// by side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/munsocial/graphbench/internal/app"
	"github.com/munsocial/graphbench/internal/config"
	"github.com/munsocial/graphbench/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

// flags holds the command line overrides.
type flags struct {
	configFile      string
	envFile         string
	dataDir         string
	httpAddr        string
	sqlitePath      string
	neo4jURI        string
	activityBackend string
	storageType     string
	logLevel        string
}

func main() {
	var (
		f           flags
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.envFile, "env-file", ".env", "Path to a .env file loaded before reading the environment")
	flag.StringVar(&f.dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&f.httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite database file")
	flag.StringVar(&f.neo4jURI, "neo4j-uri", "", "Neo4j connection URI")
	flag.StringVar(&f.activityBackend, "activity", "", "Activity log backend: mongo, memory")
	flag.StringVar(&f.storageType, "storage", "", "Report storage type: local, s3")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "graphbench - relational vs graph benchmark for a social workload\n\n")
		fmt.Fprintf(os.Stderr, "Usage: graphbench [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  graphbench --data-dir /data/graphbench\n")
		fmt.Fprintf(os.Stderr, "  graphbench --activity memory --neo4j-uri neo4j://localhost:7687\n")
		fmt.Fprintf(os.Stderr, "  graphbench --config /etc/graphbench/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD, NEO4J_DATABASE\n")
		fmt.Fprintf(os.Stderr, "  MONGO_DB_CONNECTION           MongoDB URI of the activity log\n")
		fmt.Fprintf(os.Stderr, "  GRAPHBENCH_DATA_DIR           Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  GRAPHBENCH_HTTP_ADDR          HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  GRAPHBENCH_ACTIVITY_BACKEND   Activity log backend (mongo, memory)\n")
		fmt.Fprintf(os.Stderr, "  GRAPHBENCH_STORAGE_TYPE       Report storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("graphbench version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	printBanner(log, cfg)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to create application", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Error("failed to start application", logger.Error(err))
		os.Exit(1)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Warn("shutdown finished with errors", logger.Error(err))
	}

	if err := application.Stop(context.Background()); err != nil {
		log.Error("shutdown error", logger.Error(err))
		os.Exit(1)
	}
}

// loadConfig layers the file, the .env file and environment, then flags.
func loadConfig(f flags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if f.envFile != "" {
		if err := config.LoadDotEnv(f.envFile); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.httpAddr != "" {
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.sqlitePath != "" {
		cfg.SQLite.Path = f.sqlitePath
	}
	if f.neo4jURI != "" {
		cfg.Neo4j.URI = f.neo4jURI
	}
	if f.activityBackend != "" {
		cfg.Activity.Backend = config.ActivityBackend(f.activityBackend)
	}
	if f.storageType != "" {
		cfg.Storage.Type = f.storageType
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	return cfg, nil
}

// printBanner logs a configuration summary.
func printBanner(log logger.Logger, cfg *config.Config) {
	log.Info("graphbench",
		logger.String("version", version),
		logger.String("commit", commit))
	log.Info("configuration",
		logger.String("data_dir", cfg.DataDir),
		logger.String("http_addr", cfg.HTTP.Addr),
		logger.String("sqlite", cfg.SQLite.Path),
		logger.String("neo4j", cfg.Neo4j.URI),
		logger.String("activity", string(cfg.Activity.Backend)),
		logger.String("storage", cfg.Storage.Type))
}
