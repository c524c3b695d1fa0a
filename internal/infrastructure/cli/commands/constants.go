package commands

// CLI-specific constants
const (
	// DefaultEditorCommand is the default editor command
	DefaultEditorCommand = "vi"
	envKeyEditor         = "EDITOR"

	// TimestampFormat is used for absolute times in listings.
	TimestampFormat = "2006-01-02 15:04:05"

	defaultListLimit = 20
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrKnowledgeUnavailable     = "knowledge store unavailable"
	ErrAuditLogUnavailable      = "audit log unavailable"
	ErrCacheStoreUnavailable    = "cache store unavailable"
	ErrInvalidLimit             = "--limit must be >= 0"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoKnowledge              = "No remembered plans yet."
	MsgNoMatches                = "No remembered request matches."
	MsgNoAuditRecords           = "No audit records."
	MsgCacheCleared             = "Cache cleared."
)
