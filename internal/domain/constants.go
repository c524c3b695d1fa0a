package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
	// LogFilePermissions is used for append-only logs (rw-r--r--)
	LogFilePermissions = 0o644
)

// Planning defaults
const (
	// DefaultReplanBudget is the number of plan revisions a run may make
	DefaultReplanBudget = 2
	// DefaultSimilarityThreshold is the minimum score for knowledge reuse
	DefaultSimilarityThreshold = 0.6
	// DefaultInterpreterRetries is the number of extra comprehension attempts
	DefaultInterpreterRetries = 1
	// DefaultInterpreterTimeout bounds a single reasoning call
	DefaultInterpreterTimeout = 60 * time.Second
	// DefaultSearchTimeout bounds a single context search call
	DefaultSearchTimeout = 20 * time.Second
	// DefaultSearchMaxResults is the number of snippets requested per query
	DefaultSearchMaxResults = 5
)

// Search policies
const (
	SearchPolicyMissingContext        = "missing_context"
	SearchPolicyInstallationOrComplex = "installation_or_complex"
)

// Execution defaults
const (
	// DefaultStepTimeout is the wall-clock ceiling for one step
	DefaultStepTimeout = 5 * time.Minute
	// DefaultMaxOutputBytes caps captured output per stream
	DefaultMaxOutputBytes = 1 << 20
	// DefaultCommandTimeout is the timeout for short helper commands (git, which)
	DefaultCommandTimeout = 2 * time.Second
	// DefaultHTTPClientTimeout is the timeout for HTTP client requests
	DefaultHTTPClientTimeout = 60 * time.Second
	// DefaultMaxConcurrentRuns bounds batch parallelism
	DefaultMaxConcurrentRuns = 4
)

// Storage
const (
	KnowledgeBackendSQLite = "sqlite"
	KnowledgeBackendJSONL  = "jsonl"
	// DataDirName is created under the user's home directory
	DataDirName = ".genosma"
)

// Limit constants
const (
	// DefaultPreviewMaxFiles is the default number of files to preview
	DefaultPreviewMaxFiles = 10
	// DefaultMaxCacheEntries is the maximum number of cache entries
	DefaultMaxCacheEntries = 100
	// DefaultCacheTTL is how long an interpretation stays cached
	DefaultCacheTTL = time.Hour
	// DefaultKnowledgeListLimit is the default number of entries shown by kb list
	DefaultKnowledgeListLimit = 20
	// DefaultAuditShowLimit is the default number of audit records shown
	DefaultAuditShowLimit = 50
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
