package claudecontract

// Input and output formats. The session protocol always runs stream-json in
// both directions.
const (
	FormatText       = "text"
	FormatJSON       = "json"
	FormatStreamJSON = "stream-json"
)
