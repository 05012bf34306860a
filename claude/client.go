package claude

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claude/session"
)

// Turn is one completed exchange.
type Turn struct {
	Prompt   string
	Messages []protocol.Message
	Result   *protocol.ResultMessage
}

// Text returns the text of the final assistant message.
func (t Turn) Text() string {
	return protocol.FinalText(t.Messages)
}

// Client is a persistent conversation: one threaded session plus a
// DefaultHandler that buffers each turn.
type Client struct {
	cfg     Config
	handler *session.DefaultHandler
	sess    *session.Session
}

// NewClient builds a client for cfg. Extra listeners see every callback
// after the built-in handler. A new conversation gets a generated session
// id so TranscriptPath works before the first turn.
func NewClient(cfg Config, listeners ...session.Listener) (*Client, error) {
	cfg.EnsureSessionID()
	cmd, err := BuildCommand(cfg)
	if err != nil {
		return nil, err
	}

	h := session.NewDefaultHandler()
	ls := make(session.Listeners, 0, len(listeners)+1)
	ls = append(ls, h)
	ls = append(ls, listeners...)

	opts := append(cfg.SessionOptions(nil), session.WithListener(ls))
	return &Client{
		cfg:     cfg,
		handler: h,
		sess:    session.New(cmd, opts...),
	}, nil
}

// Connect starts the CLI process.
func (c *Client) Connect(ctx context.Context) error {
	return c.sess.Connect(ctx)
}

// Ask sends prompt and waits for the turn, bounded by Config.TurnTimeout.
// A turn that ends with an error result returns it along with a
// *ResultError.
func (c *Client) Ask(ctx context.Context, prompt string) (Turn, error) {
	if err := c.sess.SendRequest(ctx, prompt); err != nil {
		return Turn{Prompt: prompt}, err
	}

	wctx, cancel := turnContext(ctx, c.cfg)
	defer cancel()
	if err := c.handler.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &session.Error{Op: "wait", Err: fmt.Errorf("%w after %s", session.ErrTimeout, c.cfg.TurnTimeout)}
		}
		return Turn{Prompt: prompt, Messages: c.handler.Messages()}, err
	}

	turn := Turn{Prompt: prompt, Messages: c.handler.Messages(), Result: c.handler.Result()}
	if turn.Result != nil && turn.Result.IsError {
		return turn, &ResultError{Result: turn.Result}
	}
	return turn, nil
}

// Send starts a turn without waiting for it.
func (c *Client) Send(ctx context.Context, prompt string) error {
	return c.sess.SendRequest(ctx, prompt)
}

// Interrupt stops the active turn.
func (c *Client) Interrupt(ctx context.Context) error {
	return c.sess.Interrupt(ctx)
}

// Messages returns the messages of the current or last turn.
func (c *Client) Messages() []protocol.Message {
	return c.handler.Messages()
}

// Wait blocks until the current turn completes. A timeout of zero or less
// waits without limit.
func (c *Client) Wait(timeout time.Duration) error {
	return c.handler.WaitForCompletion(timeout)
}

// Close stops the process. An unfinished turn ends with an error result.
func (c *Client) Close() error {
	return c.sess.Disconnect()
}

// Session exposes the underlying session.
func (c *Client) Session() *session.Session {
	return c.sess
}
