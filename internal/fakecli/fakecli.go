// Package fakecli is a scripted stand-in for the Claude CLI, used by tests
// that need a real child process. A test binary re-executes itself with
// HelperEnv set and its TestHelperProcess calls Run.
package fakecli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// HelperEnv marks a test binary invocation as the fake CLI.
	HelperEnv = "GO_WANT_HELPER_PROCESS"
	// ModeEnv selects the script.
	ModeEnv = "CLAUDE_FAKE_MODE"

	// SessionID is the id the fake reports.
	SessionID = "fake-session"
	// Model is the model the fake reports.
	Model = "fake-model"
)

// Modes understood by Run.
const (
	ModeEcho        = "echo"         // answer every prompt with "echo: <prompt>"
	ModeSession     = "session"      // like echo, result text is the session_id the request carried
	ModeArgs        = "args"         // like echo, assistant text is the argv the fake received
	ModeSlow        = "slow"         // start a turn, finish only when interrupted
	ModeDelayed     = "delayed"      // like echo, with the result 300ms late
	ModeCrash       = "crash"        // exit with code 2 in the middle of a turn
	ModeExit        = "exit"         // exit with code 3 before any output
	ModeExitLater   = "exit-later"   // exit cleanly 500ms after start
	ModeGarbage     = "garbage"      // emit a non-JSON line and an unknown type before answering
	ModeStubborn    = "stubborn"     // ignore stdin entirely
	ModePartial     = "partial"      // write one line in two pieces a second apart
	ModeErrorResult = "error-result" // answer with an error result
)

// Args returns test binary arguments that route execution to
// TestHelperProcess, followed by extra.
func Args(extra ...string) []string {
	return append([]string{"-test.run=^TestHelperProcess$", "--"}, extra...)
}

// Env returns the current environment plus the variables selecting mode.
func Env(mode string) []string {
	return append(os.Environ(), HelperEnv+"=1", ModeEnv+"="+mode)
}

// Binary returns the absolute path of the running test binary.
func Binary() string {
	p, err := filepath.Abs(os.Args[0])
	if err != nil {
		return os.Args[0]
	}
	return p
}

// Script writes an executable wrapper into dir that runs the fake with the
// CLI arguments it is given. It lets code that builds a full claude argv
// launch the fake unchanged. The mode still comes from ModeEnv.
func Script(dir string) (string, error) {
	path := filepath.Join(dir, "claude")
	script := fmt.Sprintf("#!/bin/sh\nexec '%s' -test.run='^TestHelperProcess$' -- \"$@\"\n", Binary())
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write fake claude: %w", err)
	}
	return path, nil
}

// Enabled reports whether this process was started as the fake CLI.
func Enabled() bool {
	return os.Getenv(HelperEnv) == "1"
}

type request struct {
	Type    string `json:"type"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Request   struct {
		Subtype string `json:"subtype"`
	} `json:"request"`
}

type fake struct {
	mode   string
	args   []string
	mu     sync.Mutex
	out    *bufio.Writer
	inited bool
}

// Run plays the script selected by ModeEnv and exits the process.
func Run() {
	f := &fake{
		mode: os.Getenv(ModeEnv),
		args: cliArgs(os.Args),
		out:  bufio.NewWriter(os.Stdout),
	}
	os.Exit(f.run())
}

func cliArgs(argv []string) []string {
	for i, a := range argv {
		if a == "--" {
			return argv[i+1:]
		}
	}
	return nil
}

func (f *fake) run() int {
	switch f.mode {
	case ModeExit:
		fmt.Fprintln(os.Stderr, "boom: unknown option")
		return 3
	case ModeExitLater:
		time.Sleep(500 * time.Millisecond)
		return 0
	case ModeStubborn:
		time.Sleep(time.Hour)
		return 0
	case ModePartial:
		f.raw(`{"type":"system","sub`)
		time.Sleep(time.Second)
		f.raw(`type":"init","session_id":"partial"}` + "\n")
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for in.Scan() {
		var req request
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			fmt.Fprintf(os.Stderr, "bad request: %v\n", err)
			continue
		}
		switch req.Type {
		case "user":
			if code, exit := f.turn(req); exit {
				return code
			}
		case "control_request":
			f.control(req)
		}
	}
	return 0
}

func (f *fake) turn(req request) (int, bool) {
	prompt := req.Message.Content
	if !f.inited {
		f.inited = true
		f.emit(map[string]any{
			"type": "system", "subtype": "init",
			"session_id": SessionID, "model": Model, "tools": []string{},
		})
	}

	switch f.mode {
	case ModeCrash:
		f.assistant("partial answer")
		fmt.Fprintln(os.Stderr, "fatal: kaput")
		return 2, true
	case ModeSlow:
		f.assistant("working on " + prompt)
		return 0, false
	case ModeErrorResult:
		f.result("error_max_turns", true, "turn limit reached")
		return 0, false
	case ModeGarbage:
		f.raw("not json at all\n")
		f.emit(map[string]any{"type": "mystery", "x": 1})
	case ModeDelayed:
		f.assistant("echo: " + prompt)
		time.Sleep(300 * time.Millisecond)
		f.result("success", false, "echo: "+prompt)
		return 0, false
	}

	text := "echo: " + prompt
	if f.mode == ModeArgs {
		text = strings.Join(f.args, " ")
	}
	f.assistant(text)

	result := text
	if f.mode == ModeSession {
		result = req.SessionID
	}
	f.result("success", false, result)
	return 0, false
}

func (f *fake) control(req request) {
	f.emit(map[string]any{
		"type":     "control_response",
		"response": map[string]any{"subtype": "success", "request_id": req.RequestID},
	})
	if req.Request.Subtype == "interrupt" && f.mode == ModeSlow {
		f.result("error_during_execution", true, "interrupted")
	}
}

func (f *fake) assistant(text string) {
	f.emit(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"model":   Model,
			"role":    "assistant",
			"content": []any{map[string]any{"type": "text", "text": text}},
		},
		"session_id": SessionID,
	})
}

func (f *fake) result(subtype string, isError bool, text string) {
	f.emit(map[string]any{
		"type":            "result",
		"subtype":         subtype,
		"duration_ms":     12,
		"duration_api_ms": 10,
		"is_error":        isError,
		"num_turns":       1,
		"session_id":      SessionID,
		"total_cost_usd":  0.01,
		"usage":           map[string]any{"input_tokens": 3, "output_tokens": 5},
		"result":          text,
	})
}

func (f *fake) emit(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.raw(string(b) + "\n")
}

func (f *fake) raw(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = f.out.WriteString(s)
	_ = f.out.Flush()
}
