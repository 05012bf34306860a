// Package session drives one long-lived Claude CLI process over
// line-delimited JSON on stdin/stdout.
//
// A Session owns the process, decodes its output on a background
// goroutine and delivers Listener callbacks in order on another:
//
//	h := session.NewDefaultHandler()
//	s := session.New(cmd, session.WithListener(h))
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	if err := s.SendRequest(ctx, "Hello"); err != nil {
//	    return err
//	}
//	if err := h.WaitForCompletion(time.Minute); err != nil {
//	    return err
//	}
//	fmt.Println(protocol.FinalText(h.Messages()))
//
// Cooperative offers the same operations without background goroutines;
// the caller pulls messages with Next and callbacks run on its goroutine.
//
// # States
//
// A session moves Disconnected → Connecting → Idle, then between Idle and
// Active once per turn, and through Disconnecting back to Disconnected.
// Only one turn may be active; a second SendRequest fails with
// ErrInvalidState. Every turn ends with exactly one OnTurnComplete,
// including turns cut short by a crash or Disconnect, which receive a
// synthesized error result.
//
// # Manager
//
// Manager keeps named sessions, caps their number and disconnects idle
// ones after a TTL.
package session
