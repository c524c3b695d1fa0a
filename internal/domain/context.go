package domain

// ContextSnapshot describes the host a run is planned against. It is fed to
// the interpreter so drafted commands fit the machine.
type ContextSnapshot struct {
	WorkingDir     string     `json:"working_dir"`
	HomeDir        string     `json:"home_dir"`
	Shell          string     `json:"shell"`
	OS             string     `json:"os"`
	Distro         string     `json:"distro,omitempty"`
	User           string     `json:"user"`
	Files          []FileInfo `json:"files,omitempty"`
	AvailableTools []string   `json:"available_tools,omitempty"`
	Git            *GitStatus `json:"git,omitempty"`
}

// FileInfo is a minimal representation of discovered files.
type FileInfo struct {
	Path string   `json:"path"`
	Size int64    `json:"size"`
	Type FileType `json:"type"`
}

// FileType describes the type of file entry.
type FileType string

const (
	FileTypeUnknown FileType = "unknown"
	FileTypeFile    FileType = "file"
	FileTypeDir     FileType = "dir"
	FileTypeSymlink FileType = "symlink"
)

// GitStatus captures contextual Git data.
type GitStatus struct {
	Branch         string `json:"branch"`
	ModifiedCount  int    `json:"modified_count"`
	UntrackedCount int    `json:"untracked_count"`
}
