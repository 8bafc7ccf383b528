package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/crawler"
	"github.com/nao1215/redfishscan/internal/database"
	redfishlog "github.com/nao1215/redfishscan/internal/log"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/pipeline"
	"github.com/nao1215/redfishscan/internal/redfish"
	"github.com/nao1215/redfishscan/internal/report"
	"github.com/spf13/cobra"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "REDFISHSCAN_PASSWORD"

var (
	// ErrTargetsFailed is returned when at least one target could not be scanned.
	ErrTargetsFailed = errors.New("one or more targets failed")

	// ErrResourceFailures is returned with --fail-on-error when any resource
	// failed to fetch, decode, store or write.
	ErrResourceFailures = errors.New("one or more resources failed")
)

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, ErrResourceFailures):
		return 2
	default:
		return 1
	}
}

// addScanFlags registers the flags shared by inventory, logs and action.
func addScanFlags(cmd *cobra.Command, defaultFilter string) {
	// Target selection
	cmd.Flags().BoolP("all", "a", false,
		"Scan every target defined in the configuration file")

	// Authentication
	cmd.Flags().StringP("user", "u", "", "Redfish account user name")
	cmd.Flags().StringP("password", "P", "",
		"Redfish account password (default: $"+passwordEnv+")")
	cmd.Flags().String("auth", config.AuthSession,
		"Authentication mode: session, basic or none")

	// Crawl behavior
	cmd.Flags().String("root", config.DefaultRoot, "Path the crawl starts from")
	cmd.Flags().StringP("filter", "f", defaultFilter,
		"Path pattern links must match to be followed ('*' matches one segment)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Parallel requests per service (1 keeps depth-first order)")
	cmd.Flags().Int("max-resources", config.DefaultMaxResources,
		"Maximum resources fetched per service (0 = unlimited)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of services scanned at once")

	// Transport
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Duration("target-timeout", 0,
		"Timeout for the whole run of one service (0 = none)")
	cmd.Flags().Float64("rate-limit", 0, "Requests per second per service (0 = unlimited)")
	cmd.Flags().Int("rate-burst", config.DefaultRateBurst, "Burst size when --rate-limit is set")
	cmd.Flags().BoolP("insecure", "k", false, "Skip TLS certificate verification")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Output
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("resources", false, "Include every fetched resource in JSON reports")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("parquet", "", "Also export results as a Parquet file")
	cmd.Flags().String("parquet-compression", config.DefaultParquetCompression,
		"Parquet compression: zstd, gzip, snappy or none")
	cmd.Flags().StringP("output-dir", "d", "",
		"Write every fetched resource as JSON under this directory")
	cmd.Flags().String("db-dir", "", "Run history directory (default: XDG data dir)")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")
	cmd.Flags().Bool("fail-on-error", false,
		"Exit with status 2 when any resource failed")
	cmd.Flags().Bool("progress", false, "Show a progress spinner on stderr")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getPersistentString reads a root persistent string flag.
func getPersistentString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, _ = cmd.Root().PersistentFlags().GetString(name) //nolint:errcheck // missing flag reads as ""
	}
	return v
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.AllTargets, err = flags.GetBool("all"); err != nil {
		return nil, err
	}
	if cfg.Username, err = flags.GetString("user"); err != nil {
		return nil, err
	}
	if cfg.Password, err = flags.GetString("password"); err != nil {
		return nil, err
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv(passwordEnv)
	}
	if cfg.Auth, err = flags.GetString("auth"); err != nil {
		return nil, err
	}
	if cfg.Root, err = flags.GetString("root"); err != nil {
		return nil, err
	}
	if cfg.Filter, err = flags.GetString("filter"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxResources, err = flags.GetInt("max-resources"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.TargetTimeout, err = flags.GetDuration("target-timeout"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = flags.GetInt("rate-burst"); err != nil {
		return nil, err
	}
	if cfg.Insecure, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.IncludeResources, err = flags.GetBool("resources"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ParquetFile, err = flags.GetString("parquet"); err != nil {
		return nil, err
	}
	if cfg.ParquetCompression, err = flags.GetString("parquet-compression"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.FailOnError, err = flags.GetBool("fail-on-error"); err != nil {
		return nil, err
	}
	if cfg.ShowProgress, err = flags.GetBool("progress"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getPersistentString(cmd, "log-file")
	cfg.ConfigFilePath = getPersistentString(cmd, "config")

	if cfg.TargetFile, err = loadTargetFile(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// loadTargetFile loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadTargetFile(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Targets: make(map[string]config.TargetConfig)}, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return file, nil
}

// targetSettings is the effective configuration of one service.
type targetSettings struct {
	name      string
	baseURI   string
	username  string
	password  string
	auth      string
	root      string
	filter    string
	proxy     string
	insecure  bool
	rateLimit float64
	headers   map[string]string
}

// resolveTargets merges, for every target, the configuration file with the
// flags. A flag given on the command line wins over the target entry, which
// wins over the file's defaults, which win over built-in defaults.
func resolveTargets(cmd *cobra.Command, cfg *config.Config) []targetSettings {
	names := make([]string, 0, len(cfg.Targets))
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range cfg.Targets {
		add(strings.TrimSpace(name))
	}
	if cfg.AllTargets {
		for _, name := range cfg.TargetFile.Names() {
			add(name)
		}
	}

	changed := cmd.Flags().Changed
	pick := func(flag, flagValue, fileValue string) string {
		if changed(flag) || fileValue == "" {
			return flagValue
		}
		return fileValue
	}

	settings := make([]targetSettings, 0, len(names))
	for _, name := range names {
		tc := cfg.TargetFile.Lookup(name)
		s := targetSettings{
			name:      name,
			baseURI:   strings.TrimRight(tc.BaseURI, "/"),
			username:  pick("user", cfg.Username, tc.Username),
			password:  cfg.Password,
			auth:      pick("auth", cfg.Auth, tc.Auth),
			root:      pick("root", cfg.Root, tc.Root),
			filter:    pick("filter", cfg.Filter, tc.Filter),
			proxy:     pick("proxy", cfg.ProxyAddress, tc.Proxy),
			insecure:  cfg.Insecure,
			rateLimit: cfg.RateLimit,
			headers:   tc.Headers,
		}
		if !changed("password") && tc.Password != "" {
			s.password = tc.Password
		}
		if !changed("insecure") && tc.Insecure != nil {
			s.insecure = *tc.Insecure
		}
		if !changed("rate-limit") && tc.RateLimit > 0 {
			s.rateLimit = tc.RateLimit
		}
		settings = append(settings, s)
	}
	return settings
}

// newClient creates the Redfish client of one target.
func newClient(s targetSettings, cfg *config.Config, logger *slog.Logger) (*redfish.Client, error) {
	opts := []redfish.Option{
		redfish.WithTimeout(cfg.Timeout),
		redfish.WithInsecureSkipVerify(s.insecure),
		redfish.WithUserAgent(cfg.UserAgent),
		redfish.WithMaxBodySize(cfg.MaxBodySize),
		redfish.WithLogger(logger),
	}
	if s.proxy != "" {
		opts = append(opts, redfish.WithSOCKS5Proxy(s.proxy))
	}
	if s.rateLimit > 0 {
		opts = append(opts, redfish.WithRateLimit(s.rateLimit, cfg.RateBurst))
	}
	if len(s.headers) > 0 {
		opts = append(opts, redfish.WithHeaders(s.headers))
	}
	if s.auth == config.AuthBasic && s.username != "" {
		opts = append(opts, redfish.WithBasicAuth(s.username, s.password))
	}
	return redfish.NewClient(s.baseURI, opts...)
}

// stepBuilder returns the command-specific steps that run after the crawl.
type stepBuilder func(client *redfish.Client, s targetSettings, logger *slog.Logger) ([]pipeline.Step, error)

// scanRunner holds everything one collector command shares across targets.
type scanRunner struct {
	cfg      *config.Config
	command  string
	db       *database.CrawlDB
	logger   *slog.Logger
	progress *progress
	settings map[string]targetSettings
	extra    stepBuilder
}

// factory builds the pipeline of one target:
// session login, run recording, crawl, then the command's own steps.
func (r *scanRunner) factory(target pipeline.Target) (*pipeline.Pipeline, error) {
	s, ok := r.settings[target.Name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target.Name)
	}
	logger := r.logger.With("target", s.name)

	client, err := newClient(s, r.cfg, logger)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(pipeline.WithLogger(logger))

	if s.auth == config.AuthSession && s.username != "" {
		p.AddStep(pipeline.NewSessionStep(client, s.username, s.password, logger))
	}

	var stores crawler.MultiStore
	if r.db != nil {
		record := pipeline.NewRecordStep(r.db, s.root, s.filter)
		p.AddStep(record)
		stores = append(stores, record)
	}
	if r.cfg.OutputDir != "" {
		dir, err := crawler.NewDirStore(filepath.Join(r.cfg.OutputDir, dirName(s.name)))
		if err != nil {
			return nil, err
		}
		stores = append(stores, dir)
	}

	engineOpts := []crawler.Option{
		crawler.WithConcurrency(r.cfg.Concurrency),
		crawler.WithMaxResources(r.cfg.MaxResources),
	}
	if r.progress != nil {
		engineOpts = append(engineOpts, crawler.WithVisitHook(r.progress.Visit))
	}
	crawlOpts := []pipeline.CrawlStepOption{
		pipeline.WithCrawlEngineOptions(engineOpts...),
		pipeline.WithCrawlLogger(logger),
	}
	if len(stores) > 0 {
		crawlOpts = append(crawlOpts, pipeline.WithCrawlStore(stores))
	}
	p.AddStep(pipeline.NewCrawlStep(client, crawler.Request{Root: s.root, Pattern: s.filter}, crawlOpts...))

	if r.extra != nil {
		steps, err := r.extra(client, s, logger)
		if err != nil {
			return nil, err
		}
		p.AddSteps(steps...)
	}
	return p, nil
}

// dirName turns a target name or base URI into a single directory name.
func dirName(name string) string {
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(strings.Trim(name, "/"))
}

// runCollector is the shared body of the inventory, logs and action
// commands.
func runCollector(cmd *cobra.Command, cfg *config.Config, command string, extra stepBuilder) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, logCloser, err := redfishlog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Compression is checked before anything is fetched.
	var exporter *report.ParquetExporter
	if cfg.ParquetFile != "" {
		exporter, err = report.NewParquetExporter(report.WithCompression(cfg.ParquetCompression))
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}

	settings := resolveTargets(cmd, cfg)
	targets := make([]pipeline.Target, len(settings))
	byName := make(map[string]targetSettings, len(settings))
	for i, s := range settings {
		targets[i] = pipeline.Target{Name: s.name, BaseURI: s.baseURI}
		byName[s.name] = s
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting "+command,
		"targets", len(targets),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout(), cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	runner := &scanRunner{
		cfg:      cfg,
		command:  command,
		db:       db,
		logger:   logger,
		progress: newProgress(cmd.ErrOrStderr(), cfg, command),
		settings: byName,
		extra:    extra,
	}

	bp := pipeline.NewBatchProcessor(command, runner.factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithTargetTimeout(cfg.TargetTimeout),
		pipeline.WithBatchLogger(logger),
	)

	writer := newReportWriter(output, cfg)
	reports := make([]*model.TargetReport, len(targets))
	startTime := time.Now()

	// Reports stream out as targets finish; the mutex keeps them whole.
	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, targets, func(r *model.TargetReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = r
		runner.progress.Pause()
		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "target", r.Target, "error", err)
		}
	})
	runner.progress.Finish()

	logger.Info(command+" finished",
		"targets", len(targets),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if exporter != nil {
		if err := exportParquet(exporter, cfg.ParquetFile, reports); err != nil {
			return err
		}
	}

	if batchErr != nil {
		return batchErr
	}
	return outcome(cfg, reports)
}

// outcome turns the reports of a batch into the command's error.
func outcome(cfg *config.Config, reports []*model.TargetReport) error {
	var targetErrs *multierror.Error
	failures := 0
	for _, r := range reports {
		if r == nil {
			continue
		}
		if r.Error != nil {
			targetErrs = multierror.Append(targetErrs, fmt.Errorf("%s: %w", r.Target, r.Error))
		}
		failures += r.FailureCount()
	}

	if err := targetErrs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrTargetsFailed, err)
	}
	if cfg.FailOnError && failures > 0 {
		return fmt.Errorf("%w: %d failure(s)", ErrResourceFailures, failures)
	}
	return nil
}

// openOutput returns the report destination: path when set, else stdout.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain inventory details and should only be readable by the owner.
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report writer for the configured format.
func newReportWriter(output io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output,
			report.WithPrettyPrint(),
			report.WithResources(cfg.IncludeResources),
		)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// exportParquet writes the finished reports to path.
func exportParquet(exporter *report.ParquetExporter, path string, reports []*model.TargetReport) error {
	finished := make([]*model.TargetReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			finished = append(finished, r)
		}
	}
	if len(finished) == 0 {
		return nil
	}

	out, closeOut, err := openOutput(nil, path)
	if err != nil {
		return err
	}
	defer closeOut()

	if _, err := exporter.Export(out, finished); err != nil {
		return fmt.Errorf("failed to export parquet: %w", err)
	}
	return nil
}
