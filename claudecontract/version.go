package claudecontract

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// TestedCLIVersion is the newest Claude CLI version the stream-json session
// protocol was exercised against.
const TestedCLIVersion = "2.1.19"

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// CLIVersion is a parsed Claude CLI version.
type CLIVersion struct {
	Major int
	Minor int
	Patch int
	Raw   string
}

// ParseVersion parses "2.1.19" or "2.1.19 (Claude Code)".
func ParseVersion(s string) (*CLIVersion, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return nil, fmt.Errorf("invalid version format: %q", s)
	}
	m := versionPattern.FindStringSubmatch(fields[0])
	if m == nil {
		return nil, fmt.Errorf("invalid version format: %q", s)
	}

	v := &CLIVersion{Raw: fields[0]}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	return v, nil
}

// MustParseVersion parses a version string, panicking on error.
// Use only for known-good version constants.
func MustParseVersion(s string) *CLIVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *CLIVersion) String() string {
	return v.Raw
}

// Compare returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v *CLIVersion) Compare(other *CLIVersion) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return 0
}

// IsNewerThan returns true if v is newer than other.
func (v *CLIVersion) IsNewerThan(other *CLIVersion) bool {
	return v.Compare(other) > 0
}

// DetectCLIVersion runs `claudePath --version` and parses the output.
func DetectCLIVersion(ctx context.Context, claudePath string) (*CLIVersion, error) {
	if claudePath == "" {
		claudePath = "claude"
	}
	out, err := exec.CommandContext(ctx, claudePath, FlagVersion).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s %s: %w", claudePath, FlagVersion, err)
	}
	return ParseVersion(string(out))
}

// CheckVersion detects the CLI version and logs a warning when it is newer
// than TestedCLIVersion. New versions may add message types, which decode
// as unknown messages rather than failing.
func CheckVersion(ctx context.Context, claudePath string, logger *slog.Logger) (*CLIVersion, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v, err := DetectCLIVersion(ctx, claudePath)
	if err != nil {
		logger.Debug("could not detect claude cli version", "error", err)
		return nil, err
	}
	if v.IsNewerThan(MustParseVersion(TestedCLIVersion)) {
		logger.Warn("claude cli is newer than the tested protocol version",
			"cli_version", v.Raw,
			"tested_version", TestedCLIVersion,
		)
	}
	return v, nil
}
