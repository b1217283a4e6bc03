package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

// defaultSpecs embeds the YAML template definitions shipped with the binary.
//
//go:embed specs/*.yaml
var defaultSpecs embed.FS

// Registry is a concurrency-safe store of PromptSpec values keyed by
// (id, version). It is built once at startup via LoadEmbeddedDefaults/Register
// and never mutated afterward — callers that need a fresh registry for
// tests construct one with New and populate it directly.
type Registry struct {
	specs map[key]*PromptSpec
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{specs: make(map[key]*PromptSpec)}
}

// Register adds spec under (spec.ID, spec.Version). It fails if that key
// is already present — duplicate registration is always a programming
// error, never a legitimate override.
func (r *Registry) Register(spec PromptSpec) error {
	k := key{id: spec.ID, version: spec.Version}
	if _, exists := r.specs[k]; exists {
		return &ErrDuplicate{ID: spec.ID, Version: spec.Version}
	}
	s := spec
	r.specs[k] = &s
	return nil
}

// MustRegister is Register, panicking on error, for callers that treat a
// duplicate registration as a programmer error, not something to recover
// from. The built-in templates are loaded by LoadEmbeddedDefaults, which
// calls Register.
func (r *Registry) MustRegister(spec PromptSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Get returns the spec registered under (id, version).
func (r *Registry) Get(id, version string) (*PromptSpec, error) {
	s, ok := r.specs[key{id: id, version: version}]
	if !ok {
		return nil, &ErrNotFound{ID: id, Version: version}
	}
	return s, nil
}

// MissingVars returns the subset of spec.RequiredVars absent from vars, in
// declaration order. An empty (nil) result means vars satisfies the spec.
func MissingVars(spec *PromptSpec, vars map[string]any) []string {
	var missing []string
	for _, name := range spec.RequiredVars {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Render looks up (id, version) and renders it against vars. Required
// variables absent from vars produce ErrMissingVars before any template
// execution is attempted.
func (r *Registry) Render(id, version string, vars map[string]any) (string, error) {
	spec, err := r.Get(id, version)
	if err != nil {
		return "", err
	}
	if missing := MissingVars(spec, vars); len(missing) > 0 {
		return "", &ErrMissingVars{ID: id, Version: version, Missing: missing}
	}

	switch spec.Kind {
	case KindFunc:
		return spec.Func(vars)
	default:
		tmpl, err := template.New(id + "@" + version).Option("missingkey=error").Parse(spec.Template)
		if err != nil {
			return "", fmt.Errorf("prompt: parse template %s@%s: %w", id, version, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return "", fmt.Errorf("prompt: render %s@%s: %w", id, version, err)
		}
		return buf.String(), nil
	}
}

// yamlSpec mirrors the on-disk shape of a single template definition file.
type yamlSpec struct {
	ID           string   `yaml:"id"`
	Version      string   `yaml:"version"`
	Template     string   `yaml:"template"`
	RequiredVars []string `yaml:"required_vars"`
	JSONMode     bool     `yaml:"json_mode"`
}

// LoadEmbeddedDefaults parses every specs/*.yaml file and registers each as
// a KindLiteral PromptSpec. It is called once from init() against the
// package-level Default registry; tests that need isolation build their own
// Registry with New and call this against it directly.
func LoadEmbeddedDefaults(r *Registry) error {
	entries, err := defaultSpecs.ReadDir("specs")
	if err != nil {
		return fmt.Errorf("prompt: read embedded specs: %w", err)
	}
	for _, entry := range entries {
		data, err := defaultSpecs.ReadFile("specs/" + entry.Name())
		if err != nil {
			return fmt.Errorf("prompt: read %s: %w", entry.Name(), err)
		}
		var y yamlSpec
		if err := yaml.Unmarshal(data, &y); err != nil {
			return fmt.Errorf("prompt: parse %s: %w", entry.Name(), err)
		}
		if err := r.Register(PromptSpec{
			ID:           y.ID,
			Version:      y.Version,
			Kind:         KindLiteral,
			Template:     y.Template,
			RequiredVars: y.RequiredVars,
			JSONMode:     y.JSONMode,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Default is the process-wide registry populated from the embedded planner
// and summariser templates at package init. Components that need a
// template reach through this unless a test substitutes its own Registry.
var Default = New()

func init() {
	if err := LoadEmbeddedDefaults(Default); err != nil {
		panic(err)
	}
}
