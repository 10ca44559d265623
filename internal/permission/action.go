package permission

// ActionKind classifies what a tool call is about to do, independent of
// which specific tool performs it. Tools derive an Action from their own
// parameters via DeriveAction.
type ActionKind string

const (
	ActionExecute           ActionKind = "execute"
	ActionFileWrite         ActionKind = "file_write"
	ActionFileDelete        ActionKind = "file_delete"
	ActionFileReadSensitive ActionKind = "file_read_sensitive"
	ActionNetwork           ActionKind = "network"
	ActionCustom            ActionKind = "custom"
)

// Action is the concrete thing a tool call wants to do: the kind plus a
// single descriptive target string (a command, a path, a URL, ...) used
// for pattern matching and risk analysis.
type Action struct {
	Kind   ActionKind
	Target string
}

// DeriveAction infers an Action from a tool's name and parsed params,
// using the same per-tool argument extraction convention as
// config.BuildRule (Bash -> command, Read/Edit/Write -> file_path, ...).
func DeriveAction(toolName string, params map[string]any) Action {
	switch toolName {
	case "Bash":
		cmd, _ := params["command"].(string)
		return Action{Kind: ActionExecute, Target: cmd}
	case "Write":
		fp, _ := params["file_path"].(string)
		return Action{Kind: ActionFileWrite, Target: fp}
	case "Edit":
		fp, _ := params["file_path"].(string)
		return Action{Kind: ActionFileWrite, Target: fp}
	case "Delete":
		fp, _ := params["file_path"].(string)
		return Action{Kind: ActionFileDelete, Target: fp}
	case "Read", "Glob", "Grep":
		fp, _ := params["file_path"].(string)
		if fp == "" {
			fp, _ = params["pattern"].(string)
		}
		return Action{Kind: ActionFileReadSensitive, Target: fp}
	case "WebFetch", "WebSearch":
		url, _ := params["url"].(string)
		if url == "" {
			url, _ = params["query"].(string)
		}
		return Action{Kind: ActionNetwork, Target: url}
	default:
		if fp, ok := params["file_path"].(string); ok {
			return Action{Kind: ActionCustom, Target: fp}
		}
		if p, ok := params["path"].(string); ok {
			return Action{Kind: ActionCustom, Target: p}
		}
		return Action{Kind: ActionCustom}
	}
}
