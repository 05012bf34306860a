// Package claudecontract collects every volatile string shared with the
// Claude CLI: stream-json message and content types, control subtypes, flag
// names, permission modes, transcript paths, and the CLI version check.
//
// When the CLI changes its interface only this package should need an
// update:
//
//	args := []string{
//		claudecontract.FlagInputFormat, claudecontract.FormatStreamJSON,
//		claudecontract.FlagOutputFormat, claudecontract.FormatStreamJSON,
//		claudecontract.FlagVerbose,
//	}
//
// CheckVersion logs a warning when the installed CLI is newer than
// TestedCLIVersion.
package claudecontract
