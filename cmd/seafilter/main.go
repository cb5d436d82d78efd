// Package main implements the seafilter command line tool.
// It filters raw SeaFlow EVT particle files down to optimally positioned
// particles and records per-file statistics in a popcycle database.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seaflowlab/seafilter/internal/bloom"
	"github.com/seaflowlab/seafilter/internal/config"
	"github.com/seaflowlab/seafilter/internal/pipeline"
	"github.com/seaflowlab/seafilter/internal/popdb"
	"github.com/seaflowlab/seafilter/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile   string
		dbPath       string
		oppDir       string
		evtDir       string
		s3Prefix     string
		workers      int
		everyPercent float64
		showVersion  bool
		showHelp     bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dbPath, "db", "", "Path to popcycle SQLite database")
	flag.StringVar(&oppDir, "opp-dir", "", "Output directory for focused particle files")
	flag.StringVar(&evtDir, "evt-dir", "", "Directory of EVT files to filter")
	flag.StringVar(&s3Prefix, "s3-prefix", "", "S3 key prefix of EVT files to filter")
	flag.IntVar(&workers, "workers", 0, "Number of parallel file workers")
	flag.Float64Var(&everyPercent, "every", 0, "Progress reporting resolution in percent")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "seafilter - SeaFlow EVT particle filtering\n\n")
		fmt.Fprintf(os.Stderr, "Usage: seafilter [options] [file ...]\n\n")
		fmt.Fprintf(os.Stderr, "EVT files come from positional arguments, --evt-dir,\n")
		fmt.Fprintf(os.Stderr, "--s3-prefix, or stdin when the single argument is \"-\".\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  seafilter --db cruise.db --evt-dir ./evt --workers 4\n")
		fmt.Fprintf(os.Stderr, "  seafilter --config /etc/seafilter/config.yaml --s3-prefix 2014_185/\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SEAFILTER_DB_PATH        Path to popcycle database\n")
		fmt.Fprintf(os.Stderr, "  SEAFILTER_OPP_DIR        Output directory for OPP files\n")
		fmt.Fprintf(os.Stderr, "  SEAFILTER_WORKERS        Parallel file worker count\n")
		fmt.Fprintf(os.Stderr, "  SEAFILTER_STORAGE_TYPE   Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  SEAFILTER_S3_BUCKET      S3 bucket holding EVT files\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("seafilter version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dbPath, oppDir, workers, everyPercent)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v, stopping", sig)
		cancel()
	}()

	if err := run(ctx, cfg, evtDir, s3Prefix, flag.Args()); err != nil {
		log.Fatalf("Filtering failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, evtDir, s3Prefix string, args []string) error {
	store, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}

	files, err := gatherFiles(ctx, store, evtDir, s3Prefix, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no EVT files to filter")
	}

	db, err := popdb.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := pipeline.Options{
		Files:           files,
		DB:              db,
		OppDir:          cfg.OppDir,
		Workers:         cfg.Filter.Workers,
		EveryPercent:    cfg.Filter.EveryPercent,
		QueueSize:       cfg.Filter.QueueSize,
		StallTimeout:    cfg.Filter.StallTimeout,
		AllowPartialOpp: cfg.Filter.AllowPartialOpp,
		Storage:         store,
		Prefetch:        cfg.Filter.Prefetch,
	}

	if cfg.Filter.SkipProcessed {
		skip, err := buildSkipSet(ctx, db)
		if err != nil {
			return err
		}
		opts.SkipSet = skip
	}

	_, err = pipeline.Run(ctx, opts)
	return err
}

// loadConfig merges file, environment, and flag configuration, flags
// winning.
func loadConfig(configFile, dbPath, oppDir string, workers int, everyPercent float64) (*config.Config, error) {
	_ = godotenv.Load()

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if oppDir != "" {
		cfg.OppDir = oppDir
	}
	if workers != 0 {
		cfg.Filter.Workers = workers
	}
	if everyPercent != 0 {
		cfg.Filter.EveryPercent = everyPercent
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStorage returns the EVT source for remote configurations, nil when
// files are read straight off the local filesystem.
func buildStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "s3":
		s3store, err := storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Storage.CacheDir == "" {
			return s3store, nil
		}
		return storage.NewFetchCache(s3store, cfg.Storage.CacheDir)
	case "local":
		if cfg.Storage.Path == "" {
			return nil, nil
		}
		return storage.NewLocalStorage(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// gatherFiles collects the EVT input list from positional arguments, a
// local directory walk, an S3 prefix listing, or stdin.
func gatherFiles(ctx context.Context, store storage.ObjectStorage, evtDir, s3Prefix string, args []string) ([]string, error) {
	var files []string

	if len(args) == 1 && args[0] == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				files = append(files, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading file list from stdin: %w", err)
		}
	} else {
		files = append(files, args...)
	}

	if evtDir != "" {
		found, err := findEVTFiles(evtDir)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	if s3Prefix != "" {
		if store == nil {
			return nil, fmt.Errorf("--s3-prefix requires s3 storage configuration")
		}
		keys, err := store.List(ctx, s3Prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if isEVTName(k) {
				files = append(files, k)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// findEVTFiles walks dir collecting EVT file paths.
func findEVTFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isEVTName(info.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

// EVT file name styles: old instruments wrote numbered files like
// 42.evt, newer ones write timestamps like 2014-07-04T00-00-02+00-00.
var (
	oldEVTNameRe = regexp.MustCompile(`^\d+\.evt$`)
	newEVTNameRe = regexp.MustCompile(
		`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}[+-]\d{2}-\d{2}$`)
)

// isEVTName reports whether name looks like a raw EVT file. OPP outputs
// are excluded so a re-run over a mixed tree never filters its own
// output.
func isEVTName(name string) bool {
	base := strings.TrimSuffix(filepath.Base(name), ".gz")
	if strings.HasSuffix(base, ".opp") {
		return false
	}
	return oldEVTNameRe.MatchString(base) || newEVTNameRe.MatchString(base)
}

// buildSkipSet loads processed file IDs for the latest parameter set into
// a bloom-backed skip set with database verification of hits.
func buildSkipSet(ctx context.Context, db *popdb.DB) (*bloom.SkipSet, error) {
	params, err := db.LatestFilter(ctx)
	if err != nil {
		return nil, err
	}
	processed, err := db.ProcessedFiles(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if len(processed) == 0 {
		return nil, nil
	}
	log.Printf("skipping up to %d already processed files", len(processed))
	verify := func(ctx context.Context, fileID string) (bool, error) {
		return db.FileProcessed(ctx, fileID, params.ID)
	}
	return bloom.NewSkipSet(processed, verify), nil
}
