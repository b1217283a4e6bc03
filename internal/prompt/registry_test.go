package prompt

import "testing"

func TestRegister_RejectsDuplicateKey(t *testing.T) {
	r := New()
	spec := PromptSpec{ID: "x", Version: "v1", Kind: KindLiteral, Template: "hi"}
	if err := r.Register(spec); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(spec)
	if _, ok := err.(*ErrDuplicate); !ok {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestRegister_SameIDDifferentVersionIsAllowed(t *testing.T) {
	r := New()
	if err := r.Register(PromptSpec{ID: "x", Version: "v1", Kind: KindLiteral, Template: "a"}); err != nil {
		t.Fatalf("v1: %v", err)
	}
	if err := r.Register(PromptSpec{ID: "x", Version: "v2", Kind: KindLiteral, Template: "b"}); err != nil {
		t.Errorf("v2: %v", err)
	}
}

func TestRender_MissingRequiredVarsFails(t *testing.T) {
	r := New()
	r.MustRegister(PromptSpec{
		ID: "greet", Version: "v1", Kind: KindLiteral,
		Template: "hi {{.name}}", RequiredVars: []string{"name"},
	})
	_, err := r.Render("greet", "v1", map[string]any{})
	mv, ok := err.(*ErrMissingVars)
	if !ok {
		t.Fatalf("expected ErrMissingVars, got %v", err)
	}
	if len(mv.Missing) != 1 || mv.Missing[0] != "name" {
		t.Errorf("got missing=%v", mv.Missing)
	}
}

func TestRender_LiteralTemplateInterpolates(t *testing.T) {
	r := New()
	r.MustRegister(PromptSpec{
		ID: "greet", Version: "v1", Kind: KindLiteral,
		Template: "hi {{.name}}", RequiredVars: []string{"name"},
	})
	out, err := r.Render("greet", "v1", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "hi Ada" {
		t.Errorf("got %q, want %q", out, "hi Ada")
	}
}

func TestRender_FuncTemplateIsCalled(t *testing.T) {
	r := New()
	r.MustRegister(PromptSpec{
		ID: "fn", Version: "v1", Kind: KindFunc,
		Func: func(vars map[string]any) (string, error) {
			return "computed:" + vars["x"].(string), nil
		},
		RequiredVars: []string{"x"},
	})
	out, err := r.Render("fn", "v1", map[string]any{"x": "y"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "computed:y" {
		t.Errorf("got %q", out)
	}
}

func TestRender_UnknownKeyFails(t *testing.T) {
	r := New()
	if _, err := r.Render("nope", "v1", nil); err == nil {
		t.Error("expected ErrNotFound")
	} else if _, ok := err.(*ErrNotFound); !ok {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDefaultRegistry_HasPlannerAndSummariserTemplates(t *testing.T) {
	for _, tc := range []struct{ id, version string }{
		{"planner.system", "v1"},
		{"planner.user", "v1"},
		{"planner.param_only", "v1"},
		{"summariser.step", "v1"},
		{"planner.replan", "v1"},
	} {
		if _, err := Default.Get(tc.id, tc.version); err != nil {
			t.Errorf("Default registry missing %s@%s: %v", tc.id, tc.version, err)
		}
	}
}
