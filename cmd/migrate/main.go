package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/google/uuid"

	"dbmigrate/internal/catalog"
	"dbmigrate/internal/config"
	"dbmigrate/internal/metrics"
	"dbmigrate/internal/metrics/datadog"
	"dbmigrate/internal/migrate"
	"dbmigrate/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "dbmigrate/internal/storage/all"
)

// main is the entry point for the migration binary. It loads the pipeline
// config, optionally initializes a metrics backend, and runs the
// orchestrator. Exit code is 0 only when every table reached LOADED.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.ErrorFromIssues(issues); err != nil {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}
	config.Normalize(&p)

	runID := uuid.NewString()
	ctx := context.Background()

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := p.Job
		if jobName == "" {
			jobName = "dbmigrate"
		}
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: jobName,
			RunID:   runID,
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v run=%v", backendName, jobName, runID)
			metrics.SetBackend(b)
			// Close() stops the periodic flush loop and performs a final
			// Flush(); this is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}
	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	client, err := newCatalogClient(ctx, p.Catalog)
	if err != nil {
		fatalf("catalog client: %v", err)
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:           p.Storage.Kind,
		DSN:            os.ExpandEnv(p.Storage.DSN),
		MaxConns:       p.Storage.MaxConns,
		IdleTimeout:    p.Storage.IdleTimeout.Duration,
		ConnectTimeout: p.Storage.ConnectTimeout.Duration,
	})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer repo.Close()

	maxWait := p.Runtime.PollMaxWait.Duration
	if maxWait < 0 {
		maxWait = 0 // unbounded
	}

	orc := &migrate.Orchestrator{
		Client:       client,
		Repo:         repo,
		Logger:       log.Default(),
		RunID:        runID,
		PollInterval: p.Runtime.PollInterval.Duration,
		PollMaxWait:  maxWait,
		PageSize:     p.Runtime.PageSize,
		OnFailure:    p.Runtime.OnFailure,
	}

	start := time.Now()
	summary, err := orc.Run(ctx, p.Tables)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Print(summary.String())
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if !summary.OK() {
		os.Exit(1)
	}
}

func newCatalogClient(ctx context.Context, cc config.Catalog) (catalog.Client, error) {
	switch cc.Kind {
	case "athena":
		var opts []func(*awsconfig.LoadOptions) error
		if cc.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cc.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return catalog.NewAthenaClient(athena.NewFromConfig(awsCfg), catalog.AthenaOptions{
			Catalog:        cc.Catalog,
			Database:       cc.Database,
			Workgroup:      cc.Workgroup,
			OutputLocation: cc.OutputLocation,
		})
	default:
		return nil, fmt.Errorf("unsupported catalog.kind=%s", cc.Kind)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
