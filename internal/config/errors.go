package config

import "errors"

// Configuration validation errors. Package-level sentinels so callers
// can use errors.Is() while still getting a readable message.
var (
	// ErrNoMonths is returned when no month or date range is specified.
	ErrNoMonths = errors.New("no months specified: use --month or --from/--to")

	// ErrNoCommunity is returned when no community is specified by
	// flag or config file.
	ErrNoCommunity = errors.New("no community specified: use --community or the config file")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMonthRange is returned when --to precedes --from.
	ErrInvalidMonthRange = errors.New("invalid month range: --to precedes --from")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested for the report output.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
