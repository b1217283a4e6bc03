// Package plan implements the hierarchical plan data model: a tree of
// decomposed goals with status tracking. It is data-only — there is no
// executor here; the Agent Service loop (§4.8 of the design) walks a flat
// linear trace, and this tree exists as the abstract planning structure the
// spec names as present but explicitly not part of the stable core's
// executable path.
package plan

import "time"

// GoalStatus is the lifecycle state of a single plan node.
type GoalStatus string

const (
	GoalPending    GoalStatus = "pending"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalBlocked    GoalStatus = "blocked"
	GoalFailed     GoalStatus = "failed"
)

// Node is one decomposed goal in the hierarchy. Children represent a
// further decomposition of Value; a leaf node is one the agent loop could,
// in principle, hand to the planner directly.
type Node struct {
	ID               string
	Value            string
	AbstractionScore float64
	Status           GoalStatus
	CreatedAt        time.Time
	CompletedAt      *time.Time

	// AssumedPreconditions and AssumedEffects record what this node's
	// decomposition assumed true before and after execution. AddNode leaves
	// them empty; SetGoalContext sets them.
	AssumedPreconditions []string
	AssumedEffects       []string

	// MCPTool pre-selects the tool Planner Mode B (PlanParamsOnly) should
	// generate arguments for, bypassing full tool selection. Nil means no
	// tool has been pre-selected for this goal.
	MCPTool *string

	Parent   *Node
	Children []*Node
}

// Tree is a hierarchical plan: a single root goal decomposed into a tree of
// subgoals.
type Tree struct {
	Root *Node
}

// AddNode creates a new Node for value and attaches it under parent. A nil
// parent makes the new node the tree's root; the tree must not already
// have a root in that case.
func (t *Tree) AddNode(id, value string, parent *Node) *Node {
	n := &Node{ID: id, Value: value, Status: GoalPending, CreatedAt: time.Now(), Parent: parent}
	if parent == nil {
		t.Root = n
		return n
	}
	parent.Children = append(parent.Children, n)
	return n
}

// Descendants returns every node below n, in depth-first order.
func (t *Tree) Descendants(n *Node) []*Node {
	var out []*Node
	for _, child := range n.Children {
		out = append(out, child)
		out = append(out, t.Descendants(child)...)
	}
	return out
}

// RemoveNode detaches n from its parent (and the tree, if n is the root)
// along with its entire subtree.
func (t *Tree) RemoveNode(n *Node) {
	if n.Parent != nil {
		siblings := n.Parent.Children
		for i, c := range siblings {
			if c == n {
				n.Parent.Children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	if t.Root == n {
		t.Root = nil
	}
}

// Leaves returns every childless node in the tree, in depth-first order.
func (t *Tree) Leaves() []*Node {
	if t.Root == nil {
		return nil
	}
	var leaves []*Node
	var collect func(*Node)
	collect = func(n *Node) {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
			return
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(t.Root)
	return leaves
}

// SetStatus updates n's status, stamping CompletedAt when transitioning
// into GoalCompleted or GoalFailed.
func (n *Node) SetStatus(status GoalStatus) {
	n.Status = status
	if status == GoalCompleted || status == GoalFailed {
		now := time.Now()
		n.CompletedAt = &now
	}
}

// SetGoalContext records the preconditions/effects this node's
// decomposition assumed and, optionally, pre-selects the MCP tool Planner
// Mode B should generate arguments for. An empty mcpTool leaves MCPTool
// unset (nil).
func (n *Node) SetGoalContext(preconditions, effects []string, mcpTool string) {
	n.AssumedPreconditions = preconditions
	n.AssumedEffects = effects
	if mcpTool != "" {
		n.MCPTool = &mcpTool
	}
}
