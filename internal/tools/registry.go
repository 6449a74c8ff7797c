// In file: internal/tools/registry.go
package tools

import "fmt"

// Registry holds the fixed set of tools available to the router. It is built
// once at startup and never changes afterwards, so it can be shared by every
// session without locking.
type Registry struct {
	tools map[string]ToolExecutor
	order []string
}

// NewRegistry creates a registry from the given tools. Tool names must be
// unique; a duplicate is a wiring bug and is reported as an error.
func NewRegistry(executors ...ToolExecutor) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]ToolExecutor, len(executors)),
		order: make([]string, 0, len(executors)),
	}
	for _, tool := range executors {
		name := tool.Definition().Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name cannot be registered")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (ToolExecutor, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool, nil
}

// GetDefinitions returns the definitions of all registered tools in
// registration order, which is also the order they are shown to the model.
func (r *Registry) GetDefinitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
