package claudecontract

// PermissionMode represents a permission mode for tool execution.
type PermissionMode string

const (
	// PermissionDefault prompts for each action. In stream-json mode the CLI
	// turns prompts into control requests, which this module does not answer.
	PermissionDefault PermissionMode = "default"

	// PermissionAcceptEdits auto-accepts file edits.
	PermissionAcceptEdits PermissionMode = "acceptEdits"

	// PermissionBypassPermissions bypasses all permission checks.
	PermissionBypassPermissions PermissionMode = "bypassPermissions"

	// PermissionPlan plans without executing.
	PermissionPlan PermissionMode = "plan"
)

// ValidPermissionModes returns all valid permission modes.
func ValidPermissionModes() []PermissionMode {
	return []PermissionMode{
		PermissionDefault,
		PermissionAcceptEdits,
		PermissionBypassPermissions,
		PermissionPlan,
	}
}

// IsValid returns true if the permission mode is valid.
func (m PermissionMode) IsValid() bool {
	switch m {
	case PermissionDefault, PermissionAcceptEdits, PermissionBypassPermissions, PermissionPlan:
		return true
	default:
		return false
	}
}

func (m PermissionMode) String() string {
	return string(m)
}
