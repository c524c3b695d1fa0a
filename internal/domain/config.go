package domain

// Config mirrors ~/.genosma/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Planning            PlanningSettings  `yaml:"planning"`
	Risk                RiskSettings      `yaml:"risk"`
	Execution           ExecutionSettings `yaml:"execution"`
	Knowledge           KnowledgeSettings `yaml:"knowledge"`
	Audit               AuditSettings     `yaml:"audit"`
	Search              SearchSettings    `yaml:"search"`
	Context             ContextSettings   `yaml:"context"`
	Cache               CacheSettings     `yaml:"cache"`
	Runtime             RuntimeSettings   `yaml:"runtime"`
	Tracing             TracingSettings   `yaml:"tracing"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel string `yaml:"default_model"`
	// Offline forces the heuristic interpreter even when an API key exists.
	Offline bool `yaml:"offline"`
}

// PlanningSettings controls knowledge reuse and replanning.
type PlanningSettings struct {
	ReplanBudget        *int    `yaml:"replan_budget,omitempty"`
	RetrySameOnTimeout  *bool   `yaml:"retry_same_on_timeout,omitempty"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	InterpreterTimeout  string  `yaml:"interpreter_timeout"`
	InterpreterRetries  *int    `yaml:"interpreter_retries,omitempty"`
	SearchTimeout       string  `yaml:"search_timeout"`
	// SearchPolicy is "missing_context" or "installation_or_complex".
	SearchPolicy string `yaml:"search_policy"`
}

// RiskSettings configures the risk examiner.
type RiskSettings struct {
	RulesFile     string `yaml:"rules_file"`
	ConfirmMedium bool   `yaml:"confirm_medium"`
	// WorkDir is treated like the home directory when judging whether a
	// destructive command stays inside the user's scope. Defaults to cwd.
	WorkDir string `yaml:"work_dir"`
}

// ExecutionSettings controls how steps run.
type ExecutionSettings struct {
	Shell               string `yaml:"shell"`
	StepTimeout         string `yaml:"step_timeout"`
	MaxOutputBytes      int64  `yaml:"max_output_bytes"`
	ConfirmationTimeout string `yaml:"confirmation_timeout"`
}

// KnowledgeSettings selects the knowledge store backend.
type KnowledgeSettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// AuditSettings locates the durable audit log.
type AuditSettings struct {
	Path string `yaml:"path"`
}

// SearchSettings configures the context search adapter.
type SearchSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Provider   string `yaml:"provider"`
	Endpoint   string `yaml:"endpoint"`
	AuthEnvVar string `yaml:"auth_env_var"`
	MaxResults int    `yaml:"max_results"`
}

// ContextSettings configures context collection.
type ContextSettings struct {
	IncludeFiles bool   `yaml:"include_files"`
	MaxFiles     int    `yaml:"max_files"`
	IncludeGit   string `yaml:"include_git"`
}

// CacheSettings configures the interpretation cache.
type CacheSettings struct {
	Enabled    bool   `yaml:"enabled"`
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// RuntimeSettings bounds concurrent batch runs.
type RuntimeSettings struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// TracingSettings controls span export. --debug also turns it on.
type TracingSettings struct {
	Enabled bool `yaml:"enabled"`
	// Path defaults to ~/.genosma/logs/traces.jsonl.
	Path string `yaml:"path"`
}
