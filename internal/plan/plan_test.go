package plan

import "testing"

func TestAddNode_FirstCallSetsRoot(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "ship the feature", nil)
	if tr.Root != root {
		t.Fatal("expected first AddNode to set Root")
	}
	if root.Status != GoalPending {
		t.Errorf("expected new node to start GoalPending, got %v", root.Status)
	}
}

func TestAddNode_AttachesUnderParent(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "ship the feature", nil)
	child := tr.AddNode("child", "write tests", root)

	if len(root.Children) != 1 || root.Children[0] != child {
		t.Errorf("expected child attached under root, got %v", root.Children)
	}
	if child.Parent != root {
		t.Error("expected child.Parent == root")
	}
}

func TestLeaves_ReturnsOnlyChildlessNodes(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	a := tr.AddNode("a", "subgoal a", root)
	tr.AddNode("a1", "leaf under a", a)
	tr.AddNode("b", "subgoal b", root)

	leaves := tr.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves, got %d: %v", len(leaves), leaves)
	}
	names := map[string]bool{}
	for _, n := range leaves {
		names[n.ID] = true
	}
	if !names["a1"] || !names["b"] {
		t.Errorf("expected leaves {a1, b}, got %v", names)
	}
}

func TestDescendants_IsDepthFirst(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	a := tr.AddNode("a", "a", root)
	tr.AddNode("a1", "a1", a)
	tr.AddNode("b", "b", root)

	desc := tr.Descendants(root)
	if len(desc) != 3 {
		t.Fatalf("expected 3 descendants, got %d", len(desc))
	}
	want := []string{"a", "a1", "b"}
	for i, n := range desc {
		if n.ID != want[i] {
			t.Errorf("descendant %d: expected %q, got %q", i, want[i], n.ID)
		}
	}
}

func TestRemoveNode_DetachesFromParent(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	a := tr.AddNode("a", "a", root)
	tr.RemoveNode(a)

	if len(root.Children) != 0 {
		t.Errorf("expected a detached from root, got children=%v", root.Children)
	}
}

func TestRemoveNode_ClearsRootWhenRemovingRoot(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	tr.RemoveNode(root)
	if tr.Root != nil {
		t.Error("expected Root to be nil after removing it")
	}
}

func TestSetStatus_StampsCompletedAt(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	if root.CompletedAt != nil {
		t.Fatal("expected nil CompletedAt before completion")
	}
	root.SetStatus(GoalCompleted)
	if root.CompletedAt == nil {
		t.Error("expected CompletedAt set after GoalCompleted")
	}
}

func TestSetGoalContext_PopulatesPreconditionsEffectsAndTool(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	root.SetGoalContext([]string{"pre1"}, []string{"eff1"}, "fetch_invoice")

	if len(root.AssumedPreconditions) != 1 || root.AssumedPreconditions[0] != "pre1" {
		t.Errorf("got preconditions %v", root.AssumedPreconditions)
	}
	if len(root.AssumedEffects) != 1 || root.AssumedEffects[0] != "eff1" {
		t.Errorf("got effects %v", root.AssumedEffects)
	}
	if root.MCPTool == nil || *root.MCPTool != "fetch_invoice" {
		t.Errorf("got MCPTool %v", root.MCPTool)
	}
}

func TestSetGoalContext_EmptyToolLeavesMCPToolNil(t *testing.T) {
	tr := &Tree{}
	root := tr.AddNode("root", "goal", nil)
	root.SetGoalContext(nil, nil, "")

	if root.MCPTool != nil {
		t.Errorf("expected nil MCPTool, got %v", *root.MCPTool)
	}
}
