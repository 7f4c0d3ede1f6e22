// Package models defines the core domain models for DAG-based workflow orchestration.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// NodeType enumerates the node kinds the engine can execute.
type NodeType string

const (
	NodeTypeStart           NodeType = "start"
	NodeTypeEnd             NodeType = "end"
	NodeTypeAction          NodeType = "action"
	NodeTypeCondition       NodeType = "condition"
	NodeTypeDelay           NodeType = "delay"
	NodeTypeFork            NodeType = "fork"
	NodeTypeJoin            NodeType = "join"
	NodeTypeTransform       NodeType = "transform"
	NodeTypeWebhookResponse NodeType = "webhook_response"
)

// Position is the editor placement of a node. The engine carries it through
// untouched.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Node is a unit of work in the workflow graph.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required"`
	Label    string         `json:"label"`
	Config   map[string]any `json:"config"`
	Position *Position      `json:"position,omitempty"`
}

// Edge connects a source node's completion to a target node's eligibility.
// ConditionBranch, when set, restricts the edge to one branch of a condition
// node ("true" or "false").
type Edge struct {
	ID              string `json:"id"     validate:"required"`
	Source          string `json:"source" validate:"required"`
	Target          string `json:"target" validate:"required"`
	ConditionBranch string `json:"conditionBranch,omitempty"`
}

// WorkflowDefinition is the DAG wire shape, the only format that crosses the
// boundary.
type WorkflowDefinition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given ID, if present.
func (d *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}

	return nil, false
}

// OutgoingEdges returns every edge whose source is the given node.
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []Edge {
	var out []Edge

	for _, edge := range d.Edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}

	return out
}

// IncomingEdges returns every edge whose target is the given node.
func (d *WorkflowDefinition) IncomingEdges(nodeID string) []Edge {
	var in []Edge

	for _, edge := range d.Edges {
		if edge.Target == nodeID {
			in = append(in, edge)
		}
	}

	return in
}

// InitialNodes returns the nodes with no incoming edges.
func (d *WorkflowDefinition) InitialNodes() []Node {
	var initial []Node

	for _, node := range d.Nodes {
		if len(d.IncomingEdges(node.ID)) == 0 {
			initial = append(initial, node)
		}
	}

	return initial
}

// Workflow is an immutable definition snapshot keyed by (ID, Version).
// Edits bump the version; executions keep referring to the snapshot they
// started with.
type Workflow struct {
	ID          string             `json:"id"`
	Version     int                `json:"version"`
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description"`
	Status      WorkflowStatus     `json:"status"      validate:"required"`
	Definition  WorkflowDefinition `json:"definition"`
	Owner       string             `json:"owner"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
