package claude

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/claude/session"
	"github.com/randalmurphal/claudelite/claudecontract"
	"github.com/randalmurphal/claudelite/internal/fakecli"
)

type oneShot func(context.Context, string, Config) (string, *protocol.ResultMessage, error)

var oneShots = map[string]oneShot{
	"QueryText":  QueryText,
	"StreamText": StreamText,
}

func TestOneShotText(t *testing.T) {
	for name, run := range oneShots {
		t.Run(name, func(t *testing.T) {
			text, res, err := run(context.Background(), "ping", fakeConfig(t, fakecli.ModeEcho))
			require.NoError(t, err)
			assert.Equal(t, "echo: ping", text)
			require.NotNil(t, res)
			assert.Equal(t, claudecontract.ResultSubtypeSuccess, res.Subtype)
			assert.Equal(t, fakecli.SessionID, res.SessionID)
		})
	}
}

func TestOneShotErrorResult(t *testing.T) {
	for name, run := range oneShots {
		t.Run(name, func(t *testing.T) {
			_, res, err := run(context.Background(), "ping", fakeConfig(t, fakecli.ModeErrorResult))
			var re *ResultError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, res, re.Result)
			assert.Equal(t, claudecontract.ResultSubtypeErrorMaxTurns, res.Subtype)
			assert.Contains(t, err.Error(), "turn limit reached")
		})
	}
}

func TestOneShotConnectFailure(t *testing.T) {
	for name, run := range oneShots {
		t.Run(name, func(t *testing.T) {
			cfg := fakeConfig(t, fakecli.ModeExit)
			cfg.StartupGrace = 5 * time.Second
			_, _, err := run(context.Background(), "ping", cfg)
			assert.ErrorIs(t, err, session.ErrConnection)
		})
	}
}

func TestOneShotInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTurns = -1
	_, _, err := QueryText(context.Background(), "x", cfg)
	assert.ErrorContains(t, err, "invalid config")
}

func TestQuery_PassesFlags(t *testing.T) {
	cfg := fakeConfig(t, fakecli.ModeArgs)
	cfg.Model = "opus"
	cfg.AllowedTools = []string{"Read"}

	text, _, err := QueryText(context.Background(), "x", cfg)
	require.NoError(t, err)
	assert.Contains(t, text, "--input-format stream-json")
	assert.Contains(t, text, "--model opus")
	assert.Contains(t, text, "--allowedTools Read")
}

func TestQuery_YieldsInOrder(t *testing.T) {
	var types []string
	for msg, err := range Query(context.Background(), "ping", fakeConfig(t, fakecli.ModeEcho)) {
		require.NoError(t, err)
		types = append(types, msg.Type())
	}
	assert.Equal(t, []string{"system", "assistant", "result"}, types)
}

func TestQuery_BreakStopsProcess(t *testing.T) {
	for msg, err := range Query(context.Background(), "work", fakeConfig(t, fakecli.ModeSlow)) {
		require.NoError(t, err)
		if _, ok := msg.(*protocol.AssistantMessage); ok {
			break
		}
	}
}

func TestStream_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotErr error
	for msg, err := range Stream(ctx, "work", fakeConfig(t, fakecli.ModeSlow)) {
		if err != nil {
			gotErr = err
			break
		}
		if _, ok := msg.(*protocol.AssistantMessage); ok {
			cancel()
		}
	}
	assert.True(t, errors.Is(gotErr, context.Canceled), "got %v", gotErr)
}

func TestQuery_TurnTimeout(t *testing.T) {
	cfg := fakeConfig(t, fakecli.ModeSlow)
	cfg.TurnTimeout = 500 * time.Millisecond

	_, _, err := QueryText(context.Background(), "work", cfg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, err = StreamText(context.Background(), "work", cfg)
	assert.ErrorIs(t, err, session.ErrTimeout)
}
