// Command vaultd is the composition root: it loads configuration, opens
// the metadata store's connection pool, runs migrations, wires the
// blob store, and constructs a vault.Vault, then blocks until it
// receives a shutdown signal. It exposes no network surface of its
// own — callers embed pkg/vault directly or front it with their own
// transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/niooii/ocloud/internal/config"
	"github.com/niooii/ocloud/internal/logger"
	"github.com/niooii/ocloud/internal/metrics"
	"github.com/niooii/ocloud/pkg/blobstore"
	"github.com/niooii/ocloud/pkg/blobstore/fs"
	blobs3 "github.com/niooii/ocloud/pkg/blobstore/s3"
	"github.com/niooii/ocloud/pkg/metadata/postgres"
	"github.com/niooii/ocloud/pkg/vault"
)

const usage = `vaultd - personal cloud object store daemon

Usage:
  vaultd <command> [flags]

Commands:
  start    Run the migrations and block serving the vault
  migrate  Run pending migrations and exit
  help     Show this message

Flags:
  --config string    Path to config file (optional; defaults are used when absent)

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: OCLOUD_<SECTION>_<KEY> (use underscores for nested keys), e.g.
  OCLOUD_LOGGING_LEVEL=DEBUG, OCLOUD_DATABASE_DSN=postgres://...
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runStart()
	case "migrate":
		runMigrate()
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func loadConfig(args []string, fsName string) config.Config {
	flags := flag.NewFlagSet(fsName, flag.ExitOnError)
	configFile := flags.String("config", "", "path to config file")
	if err := flags.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return cfg
}

func runMigrate() {
	cfg := loadConfig(os.Args[2:], "migrate")
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	if err := postgres.RunMigrations(cfg.Database.DSN, logger.With()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	logger.Info("migrations applied")
}

func runStart() {
	cfg := loadConfig(os.Args[2:], "start")

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger.Info("vaultd starting", "blob_backend", cfg.Blob.Backend, "log_level", cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.RunMigrations(cfg.Database.DSN, logger.With()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	logger.Info("migrations applied")

	dbCfg := postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}
	store, err := postgres.Open(ctx, dbCfg, logger.With())
	if err != nil {
		log.Fatalf("failed to open metadata store: %v", err)
	}
	defer store.Close()
	logger.Info("metadata store connected")

	blobs, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		log.Fatalf("failed to construct blob store: %v", err)
	}
	logger.Info("blob store ready", "backend", cfg.Blob.Backend)

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	tempDir := cfg.Blob.Root + "/.tmp"
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatalf("failed to create upload staging directory: %v", err)
	}

	v := vault.NewWithSessionTTL(store, blobs, tempDir, cfg.Session.TTL, collectors, logger.With())
	defer v.Close()
	logger.Info("vault ready", "session_ttl", cfg.Session.TTL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("vaultd running, press Ctrl+C to stop")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received, closing vault")
	cancel()
}

// newBlobStore constructs the configured blobstore.Store backend. The
// s3 backend resolves credentials from the standard AWS config chain
// (environment, shared config file, IMDS) rather than reading them out
// of BlobConfig — object store credentials do not belong in a YAML file.
func newBlobStore(ctx context.Context, cfg config.BlobConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return fs.New(cfg.Root, logger.With())
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Region != "" {
				o.Region = cfg.S3Region
			}
		})
		return blobs3.New(client, cfg.S3Bucket, blobs3.DefaultRetryConfig(), logger.With()), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
