package contextcollector

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/ports"
)

// BasicCollector implements ContextCollector with filesystem + tool detection.
type BasicCollector struct {
	toolsToCheck []string
	osRelease    string
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		toolsToCheck: []string{
			"apt-get", "dnf", "yum", "pacman", "apk", "snap",
			"systemctl", "docker", "git", "curl", "wget",
			"python3", "pip3", "go", "node", "npm", "make",
		},
		osRelease: "/etc/os-release",
	}
}

// Collect gathers the host snapshot handed to the interpreter.
func (c *BasicCollector) Collect(ctx context.Context, cfg domain.Config) (domain.ContextSnapshot, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	var files []domain.FileInfo
	if cfg.Context.IncludeFiles {
		files = listFiles(wd, cfg.GetMaxFiles())
	}

	var gitStatus *domain.GitStatus
	if cfg.IsGitContextEnabled() {
		gitStatus = collectGitInfo(ctx, wd)
	}

	return domain.ContextSnapshot{
		WorkingDir:     wd,
		HomeDir:        filesystem.UserHomeDir(),
		Shell:          detectShell(cfg),
		OS:             runtime.GOOS,
		Distro:         readDistro(c.osRelease),
		User:           os.Getenv("USER"),
		Files:          files,
		AvailableTools: c.detectTools(),
		Git:            gitStatus,
	}, nil
}

func (c *BasicCollector) detectTools() []string {
	var available []string
	for _, tool := range c.toolsToCheck {
		if _, err := exec.LookPath(tool); err == nil {
			available = append(available, tool)
		}
	}
	sort.Strings(available)
	return available
}

func listFiles(dir string, limit int) []domain.FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []domain.FileInfo
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if len(files) >= limit {
			break
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.FileInfo{
			Path: entry.Name(),
			Size: info.Size(),
			Type: toFileType(info),
		})
	}
	return files
}

func toFileType(info os.FileInfo) domain.FileType {
	switch {
	case info.Mode().IsDir():
		return domain.FileTypeDir
	case info.Mode()&os.ModeSymlink != 0:
		return domain.FileTypeSymlink
	case info.Mode().IsRegular():
		return domain.FileTypeFile
	default:
		return domain.FileTypeUnknown
	}
}

// detectShell reports the shell steps will run under, which is the
// configured one when set.
func detectShell(cfg domain.Config) string {
	if cfg.Execution.Shell != "" {
		return cfg.Execution.Shell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// readDistro returns PRETTY_NAME (or NAME) from an os-release file.
func readDistro(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		values[key] = strings.Trim(value, `"'`)
	}
	if name := values["PRETTY_NAME"]; name != "" {
		return name
	}
	return values["NAME"]
}

func collectGitInfo(ctx context.Context, dir string) *domain.GitStatus {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil
	}
	branch := runCmd(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	statusShort := runCmd(ctx, dir, "git", "status", "--short")
	modified, untracked := countGitStatus(statusShort)
	return &domain.GitStatus{
		Branch:         strings.TrimSpace(branch),
		ModifiedCount:  modified,
		UntrackedCount: untracked,
	}
}

func countGitStatus(short string) (modified, untracked int) {
	for _, line := range strings.Split(short, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			untracked++
		} else {
			modified++
		}
	}
	return modified, untracked
}

func runCmd(ctx context.Context, dir string, name string, args ...string) string {
	cctx, cancel := context.WithTimeout(ctx, domain.DefaultCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

var _ ports.ContextCollector = (*BasicCollector)(nil)
