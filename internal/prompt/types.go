// Package prompt implements the Prompt Registry: a versioned store of
// planner/summariser templates, keyed by (id, version), rendered with
// strict required-variable checking. Registration happens once at startup;
// the registry is immutable thereafter.
package prompt

import "fmt"

// Kind distinguishes the two render paths a PromptSpec may use.
type Kind string

const (
	// KindLiteral templates are rendered with text/template against vars.
	KindLiteral Kind = "literal"
	// KindFunc templates are rendered by calling Func(vars) directly.
	KindFunc Kind = "func"
)

// RenderFunc is the "caller-supplied function" template path. It must be
// pure and side-effect free, matching the literal-template path's contract.
type RenderFunc func(vars map[string]any) (string, error)

// PromptSpec is a single versioned template.
type PromptSpec struct {
	ID           string
	Version      string
	Kind         Kind
	Template     string // used when Kind == KindLiteral
	Func         RenderFunc // used when Kind == KindFunc
	RequiredVars []string
	JSONMode     bool
}

type key struct {
	id      string
	version string
}

// ErrDuplicate is returned by Register when (id, version) is already present.
type ErrDuplicate struct{ ID, Version string }

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("prompt: %s@%s already registered", e.ID, e.Version)
}

// ErrNotFound is returned by Render/Get when (id, version) is unknown.
type ErrNotFound struct{ ID, Version string }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("prompt: %s@%s not found", e.ID, e.Version)
}

// ErrMissingVars is returned by Render when required_vars is not a subset
// of the supplied vars.
type ErrMissingVars struct {
	ID, Version string
	Missing     []string
}

func (e *ErrMissingVars) Error() string {
	return fmt.Sprintf("prompt: %s@%s missing required vars: %v", e.ID, e.Version, e.Missing)
}
