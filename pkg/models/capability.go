package models

// Capability is a registered handler persona: the patterns that route
// objectives to it and the tools it is allowed to invoke. Capabilities
// are registered at startup and read-only during execution.
type Capability struct {
	// Name uniquely identifies the capability.
	Name string `json:"name" yaml:"name"`
	// TriggerPatterns are matched against objective descriptions
	// during routing. A pattern containing glob metacharacters is
	// matched as a glob; otherwise it is a case-insensitive
	// substring match.
	TriggerPatterns []string `json:"trigger_patterns" yaml:"trigger_patterns"`
	// ToolPermissions lists the tool IDs this capability may invoke
	// through the gateway.
	ToolPermissions []string `json:"tool_permissions" yaml:"tool_permissions"`
	// Priority breaks ties when multiple capabilities match. Higher
	// wins; equal priorities fall back to registration order.
	Priority int `json:"priority" yaml:"priority"`
}

// Permits returns true if the capability may invoke the given tool.
func (c *Capability) Permits(toolID string) bool {
	for _, id := range c.ToolPermissions {
		if id == toolID {
			return true
		}
	}
	return false
}
