package claudecontract

// CLI flag names used when launching a stream-json session.
//
// Source: https://code.claude.com/docs/en/cli-reference
const (
	// Protocol flags, always present.
	FlagInputFormat  = "--input-format"
	FlagOutputFormat = "--output-format"
	FlagVerbose      = "--verbose" // required by --output-format stream-json

	// Model flags
	FlagModel         = "--model"
	FlagFallbackModel = "--fallback-model"

	// Session flags
	FlagSessionID   = "--session-id"
	FlagContinue    = "--continue"
	FlagResume      = "--resume"
	FlagForkSession = "--fork-session"

	// Tool flags (the CLI uses camelCase here)
	FlagAllowedTools    = "--allowedTools"
	FlagDisallowedTools = "--disallowedTools"
	FlagTools           = "--tools"

	// Prompt flags
	FlagSystemPrompt       = "--system-prompt"
	FlagAppendSystemPrompt = "--append-system-prompt"

	// Permission flags
	FlagDangerouslySkipPermissions = "--dangerously-skip-permissions"
	FlagPermissionMode             = "--permission-mode"

	// Settings and scope
	FlagSettingSources = "--setting-sources"
	FlagAddDir         = "--add-dir"

	// Limits
	FlagMaxBudgetUSD = "--max-budget-usd"
	FlagMaxTurns     = "--max-turns"

	// Output shaping
	FlagJSONSchema             = "--json-schema"
	FlagIncludePartialMessages = "--include-partial-messages"

	FlagVersion = "--version"
)

// SessionFlags returns the flags that select which conversation the CLI
// attaches to. At most one of session-id, resume and continue is expected
// per invocation; fork-session only modifies resume.
func SessionFlags() []string {
	return []string{FlagSessionID, FlagResume, FlagContinue, FlagForkSession}
}
