// Command claudelite talks to the Claude CLI over a persistent stream-json
// session: a one-shot query, an interactive chat, and a few helpers.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/randalmurphal/claudelite/internal/logging"
)

var version = "dev"

const usage = `usage:
  claudelite [flags] [prompt...]       one-shot query, or a chat when no prompt is given
  claudelite schema                    print the JSON schema of the config file
  claudelite version [-claude-path p]  check the installed Claude CLI
  claudelite transcript [-follow] [-summary] <path>
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		exit(runChat(args))
		return
	}

	switch args[0] {
	case "schema":
		logging.Setup(false)
		exit(runSchema(os.Stdout))
	case "version":
		logging.Setup(false)
		exit(runVersion(args[1:]))
	case "transcript":
		logging.Setup(false)
		exit(runTranscript(args[1:]))
	case "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		// Anything else is the start of a prompt.
		exit(runChat(args))
	}
}

func exit(err error) {
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
