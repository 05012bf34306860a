// Package claude drives the Claude CLI as a persistent stream-json session.
//
// Config describes the CLI invocation and BuildCommand turns it into a
// session.Command. On top of that sit the facades:
//
// # One-shot
//
//	text, result, err := claude.QueryText(ctx, "Summarize README.md", cfg)
//
// Query yields every message of the turn as it arrives; Stream does the
// same without background goroutines.
//
// # Conversations
//
//	client, err := claude.NewClient(cfg)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	turn, err := client.Ask(ctx, "Hello!")
//	fmt.Println(turn.Text())
//
// # Container Support
//
// For containerized environments, credentials can be loaded from a mounted
// home directory:
//
//	cfg := claude.DefaultConfig()
//	cfg.HomeDir = "/home/worker"
//	cfg.DangerouslySkipPermissions = true
//
// # Structured Output
//
// WithOutputSchema reflects a Go type into --json-schema; the reply lands in
// ResultMessage.StructuredOutput and DecodeStructuredOutput converts it back.
package claude
