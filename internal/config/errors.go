package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no service is named on the command line.
	ErrNoTarget = errors.New("no target specified: provide a base URI or target name, or use --all")

	// ErrNoConfiguredTargets is returned for --all without any configured targets.
	ErrNoConfiguredTargets = errors.New("--all requires targets in the configuration file")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidTargetTimeout is returned when the per-target timeout is negative.
	ErrInvalidTargetTimeout = errors.New("invalid target timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when crawl concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxResources is returned when the resource limit is negative.
	ErrInvalidMaxResources = errors.New("invalid max resources: must be non-negative")

	// ErrInvalidRateLimit is returned for a negative rate or a rate without burst.
	ErrInvalidRateLimit = errors.New("invalid rate limit: rate must be non-negative and burst positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRoot is returned when the crawl root is not an absolute path.
	ErrInvalidRoot = errors.New("invalid root: must start with /")

	// ErrInvalidAuth is returned for an unknown authentication mode.
	ErrInvalidAuth = errors.New("invalid auth mode: must be session, basic or none")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
