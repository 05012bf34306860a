// Package protocol holds the stream-json message model spoken by the Claude
// CLI and the codec for it.
//
// Every decoded line is a Message. Message and ContentBlock are closed sets:
// consumers switch on the concrete type and fall back to UnknownMessage or
// UnknownBlock for anything a newer CLI may add.
//
//	msg, err := protocol.DecodeLine(line)
//	if err != nil {
//		// not JSON at all; report and skip the line
//	}
//	switch m := msg.(type) {
//	case *protocol.AssistantMessage:
//		fmt.Print(protocol.Text(m))
//	case *protocol.ResultMessage:
//		// turn is over
//	case *protocol.UnknownMessage:
//		// forward-compatible fallback, keep it
//	}
package protocol
