// Package dag validates workflow definitions: structure, acyclicity and
// reachability.
package dag

import (
	"fmt"

	"github.com/SoumadeepCh/FlowSync/pkg/models"
)

// Result carries every finding, not just the first.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks a workflow definition. Structural errors (duplicate IDs,
// dangling edges, missing start) short-circuit cycle and reachability
// analysis so the report is not polluted by cascading findings.
func Validate(def *models.WorkflowDefinition) Result {
	var errs []string

	if def == nil || len(def.Nodes) == 0 {
		return Result{OK: false, Errors: []string{"definition has no nodes"}}
	}

	errs = append(errs, checkDuplicateIDs(def)...)
	errs = append(errs, checkStartEnd(def)...)
	errs = append(errs, checkEdgeEndpoints(def)...)
	errs = append(errs, checkForkJoin(def)...)

	if len(errs) > 0 {
		return Result{OK: false, Errors: errs}
	}

	errs = append(errs, checkAcyclic(def)...)
	errs = append(errs, checkReachability(def)...)

	return Result{OK: len(errs) == 0, Errors: errs}
}

func checkDuplicateIDs(def *models.WorkflowDefinition) []string {
	var errs []string

	nodeIDs := make(map[string]bool, len(def.Nodes))

	for _, node := range def.Nodes {
		if node.ID == "" {
			errs = append(errs, "node with empty id")

			continue
		}

		if nodeIDs[node.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		nodeIDs[node.ID] = true
	}

	edgeIDs := make(map[string]bool, len(def.Edges))

	for _, edge := range def.Edges {
		if edge.ID == "" {
			errs = append(errs, "edge with empty id")

			continue
		}

		if edgeIDs[edge.ID] {
			errs = append(errs, fmt.Sprintf("duplicate edge id %q", edge.ID))
		}

		edgeIDs[edge.ID] = true
	}

	return errs
}

func checkStartEnd(def *models.WorkflowDefinition) []string {
	var errs []string

	starts, ends := 0, 0

	for _, node := range def.Nodes {
		switch node.Type {
		case models.NodeTypeStart:
			starts++
		case models.NodeTypeEnd:
			ends++
		}
	}

	if starts != 1 {
		errs = append(errs, fmt.Sprintf("workflow must have exactly one start node, found %d", starts))
	}

	if ends == 0 {
		errs = append(errs, "workflow must have at least one end node")
	}

	return errs
}

func checkEdgeEndpoints(def *models.WorkflowDefinition) []string {
	var errs []string

	nodeIDs := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		nodeIDs[node.ID] = true
	}

	for _, edge := range def.Edges {
		if !nodeIDs[edge.Source] {
			errs = append(errs, fmt.Sprintf("edge %q references unknown source node %q", edge.ID, edge.Source))
		}

		if !nodeIDs[edge.Target] {
			errs = append(errs, fmt.Sprintf("edge %q references unknown target node %q", edge.ID, edge.Target))
		}
	}

	return errs
}

func checkForkJoin(def *models.WorkflowDefinition) []string {
	var errs []string

	outDegree := make(map[string]int)
	inDegree := make(map[string]int)

	for _, edge := range def.Edges {
		outDegree[edge.Source]++
		inDegree[edge.Target]++
	}

	for _, node := range def.Nodes {
		switch node.Type {
		case models.NodeTypeFork:
			if outDegree[node.ID] < 2 {
				errs = append(errs, fmt.Sprintf("fork node %q must have at least 2 outgoing edges, found %d", node.ID, outDegree[node.ID]))
			}
		case models.NodeTypeJoin:
			if inDegree[node.ID] < 2 {
				errs = append(errs, fmt.Sprintf("join node %q must have at least 2 incoming edges, found %d", node.ID, inDegree[node.ID]))
			}
		}
	}

	return errs
}

// checkAcyclic runs Kahn's topological sort: peel zero in-degree nodes
// iteratively; anything left over sits on a cycle.
func checkAcyclic(def *models.WorkflowDefinition) []string {
	inDegree := make(map[string]int, len(def.Nodes))
	adjacency := make(map[string][]string, len(def.Nodes))

	for _, node := range def.Nodes {
		inDegree[node.ID] = 0
	}

	for _, edge := range def.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	var frontier []string

	for id, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}

	peeled := 0

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		peeled++

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	if peeled != len(def.Nodes) {
		return []string{"workflow contains a cycle"}
	}

	return nil
}

// checkReachability runs a BFS from the start node; every other node must be
// reachable.
func checkReachability(def *models.WorkflowDefinition) []string {
	var startID string

	for _, node := range def.Nodes {
		if node.Type == models.NodeTypeStart {
			startID = node.ID

			break
		}
	}

	adjacency := make(map[string][]string, len(def.Nodes))
	for _, edge := range def.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := map[string]bool{startID: true}
	queue := []string{startID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true

				queue = append(queue, next)
			}
		}
	}

	var errs []string

	for _, node := range def.Nodes {
		if !visited[node.ID] {
			errs = append(errs, fmt.Sprintf("node %q is not reachable from start", node.ID))
		}
	}

	return errs
}
