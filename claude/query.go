package claude

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claude/session"
)

// ResultError reports a turn that ended with an error result.
type ResultError struct {
	Result *protocol.ResultMessage
}

func (e *ResultError) Error() string {
	if e.Result.Result != "" {
		return fmt.Sprintf("claude turn failed (%s): %s", e.Result.Subtype, e.Result.Result)
	}
	return fmt.Sprintf("claude turn failed (%s)", e.Result.Subtype)
}

// Query runs one turn on a fresh process and yields its messages, ending
// with the result. Reading happens on background goroutines; breaking out
// of the loop stops the process.
//
//	for msg, err := range claude.Query(ctx, "What is 2+2?", cfg) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(protocol.Text(msg))
//	}
func Query(ctx context.Context, prompt string, cfg Config) iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		cmd, err := BuildCommand(cfg)
		if err != nil {
			yield(nil, err)
			return
		}
		ctx, cancel := turnContext(ctx, cfg)
		defer cancel()

		stop := make(chan struct{})
		// Buffered so an echoed prompt, delivered before SendRequest
		// returns, does not wait for the loop below.
		msgs := make(chan protocol.Message, 16)
		relay := session.ListenerFuncs{
			Message: func(msg protocol.Message) {
				select {
				case msgs <- msg:
				case <-stop:
				}
			},
		}

		s := session.New(cmd, append(cfg.SessionOptions(nil), session.WithListener(relay))...)
		if err := s.Connect(ctx); err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			close(stop)
			_ = s.Disconnect()
		}()

		if err := s.SendRequest(ctx, prompt); err != nil {
			yield(nil, err)
			return
		}

		for {
			select {
			case msg := <-msgs:
				if !yield(msg, nil) || protocol.IsTerminal(msg) {
					return
				}
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}

// Stream is Query without background goroutines: the process is read on
// the caller's goroutine as the loop asks for messages. Cancelling ctx
// yields ctx.Err() and stops the process.
func Stream(ctx context.Context, prompt string, cfg Config) iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		cmd, err := BuildCommand(cfg)
		if err != nil {
			yield(nil, err)
			return
		}
		ctx, cancel := turnContext(ctx, cfg)
		defer cancel()

		c := session.NewCooperative(cmd, cfg.SessionOptions(nil)...)
		if err := c.Connect(ctx); err != nil {
			yield(nil, err)
			return
		}
		defer c.Disconnect()

		if err := c.SendRequest(ctx, prompt); err != nil {
			yield(nil, err)
			return
		}

		for {
			msg, err := c.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(msg, nil) || protocol.IsTerminal(msg) {
				return
			}
		}
	}
}

// QueryText runs Query and returns the text of the final assistant message
// with the result. An error result is returned as a *ResultError.
func QueryText(ctx context.Context, prompt string, cfg Config) (string, *protocol.ResultMessage, error) {
	return collectText(Query(ctx, prompt, cfg))
}

// StreamText is QueryText on the cooperative path.
func StreamText(ctx context.Context, prompt string, cfg Config) (string, *protocol.ResultMessage, error) {
	return collectText(Stream(ctx, prompt, cfg))
}

func collectText(seq iter.Seq2[protocol.Message, error]) (string, *protocol.ResultMessage, error) {
	var msgs []protocol.Message
	var result *protocol.ResultMessage
	for msg, err := range seq {
		if err != nil {
			return protocol.FinalText(msgs), result, err
		}
		msgs = append(msgs, msg)
		if r, ok := msg.(*protocol.ResultMessage); ok {
			result = r
		}
	}

	text := protocol.FinalText(msgs)
	switch {
	case result == nil:
		return text, nil, fmt.Errorf("claude stream ended without a result")
	case result.IsError:
		return text, result, &ResultError{Result: result}
	}
	return text, result, nil
}

func turnContext(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.TurnTimeout > 0 {
		return context.WithTimeout(ctx, cfg.TurnTimeout)
	}
	return context.WithCancel(ctx)
}
