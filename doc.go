// Package claudelite drives the Claude CLI as a long-lived process over
// line-delimited stream-json on stdin and stdout.
//
// The packages build on each other:
//
//   - claudecontract: wire constants, flags, paths and the CLI version check
//   - claude/protocol: decoding output lines into typed messages, encoding requests
//   - claude/session: the process supervisor and the session engine, with a
//     threaded Session, a caller-driven Cooperative and a Manager
//   - claude: Config, command building, one-shot Query and Stream, and Client
//   - claude/jsonl: reading and tailing the transcripts the CLI writes
//   - metrics: a Prometheus session listener
//
// # Quick Start
//
// One question, one answer:
//
//	import "github.com/randalmurphal/claudelite/claude"
//	text, _, err := claude.QueryText(ctx, "What is 2+2?", claude.DefaultConfig())
//
// A conversation:
//
//	client, _ := claude.NewClient(claude.DefaultConfig())
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close()
//	turn, err := client.Ask(ctx, "Remember the number 7.")
//
// The cmd/claudelite command wraps both in a terminal chat.
package claudelite
