package claudecontract

import (
	"path/filepath"
	"strings"
)

// Directory names used by Claude Code.
const (
	// DirClaude is the main Claude configuration directory.
	DirClaude = ".claude"

	// DirProjects holds one transcript directory per working directory.
	DirProjects = "projects"
)

// TranscriptExt is the extension of session transcript files.
const TranscriptExt = ".jsonl"

// SettingSource represents a source for loading settings.
type SettingSource string

const (
	SettingSourceUser    SettingSource = "user"
	SettingSourceProject SettingSource = "project"
	SettingSourceLocal   SettingSource = "local"
)

// ValidSettingSources returns all valid setting sources.
func ValidSettingSources() []SettingSource {
	return []SettingSource{
		SettingSourceUser,
		SettingSourceProject,
		SettingSourceLocal,
	}
}

// IsValid returns true if s is a known setting source.
func (s SettingSource) IsValid() bool {
	switch s {
	case SettingSourceUser, SettingSourceProject, SettingSourceLocal:
		return true
	default:
		return false
	}
}

// NormalizeProjectPath converts an absolute working directory to the name
// Claude Code uses for its transcript directory.
//
//	/home/user/repos/project -> -home-user-repos-project
//
// Dots and underscores are replaced too, matching what the CLI writes.
func NormalizeProjectPath(workdir string) string {
	clean := filepath.ToSlash(filepath.Clean(workdir))
	return strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(clean)
}

// ProjectsDir returns ~/.claude/projects for the given home directory.
func ProjectsDir(homeDir string) string {
	return filepath.Join(homeDir, DirClaude, DirProjects)
}

// TranscriptPath returns the transcript file for a session started in
// workdir. It returns "" when any input is missing.
func TranscriptPath(homeDir, workdir, sessionID string) string {
	if homeDir == "" || workdir == "" || sessionID == "" {
		return ""
	}
	return filepath.Join(ProjectsDir(homeDir), NormalizeProjectPath(workdir), sessionID+TranscriptExt)
}
