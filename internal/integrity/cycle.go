package integrity

import (
	"sort"
	"strings"
)

// PayerGraph maps a customer business key to the business key of its payer.
// A customer has at most one payer, so every node has at most one outgoing edge.
type PayerGraph struct {
	next  map[string]string
	order []string
}

// NewPayerGraph returns an empty graph.
func NewPayerGraph() *PayerGraph {
	return &PayerGraph{next: make(map[string]string)}
}

// SetPayer sets (or replaces) the payer of customer.
func (g *PayerGraph) SetPayer(customer, payer string) {
	if _, ok := g.next[customer]; !ok {
		g.order = append(g.order, customer)
	}
	g.next[customer] = payer
}

// Payer returns the payer of customer, if any.
func (g *PayerGraph) Payer(customer string) (string, bool) {
	p, ok := g.next[customer]
	return p, ok
}

// Customers returns every customer with an outgoing edge, in insertion order.
func (g *PayerGraph) Customers() []string {
	return g.order
}

// PayerCycle is one distinct cycle found in a payer graph.
type PayerCycle struct {
	// Origin is the customer whose chain walk found the cycle.
	Origin string
	// Nodes lists the cycle in walk order, starting at the first revisited node.
	Nodes []string
}

// Path renders the cycle as "A → B → C → A".
func (c PayerCycle) Path() string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return strings.Join(append(append([]string{}, c.Nodes...), c.Nodes[0]), " → ")
}

// Contains reports whether node is part of the cycle.
func (c PayerCycle) Contains(node string) bool {
	for _, n := range c.Nodes {
		if n == node {
			return true
		}
	}
	return false
}

// DetectPayerCycles walks the payer chain of every customer with an outgoing
// edge and returns each distinct cycle once, attributed to the first customer
// (in insertion order) whose walk reached it.
//
// The walk is repeated per start node, so the worst case is quadratic in the
// number of customers. That is fine for import batches.
func DetectPayerCycles(g *PayerGraph) []PayerCycle {
	var cycles []PayerCycle
	reported := make(map[string]bool)

	for _, start := range g.order {
		pos := map[string]int{start: 0}
		path := []string{start}
		current := start

		for {
			next, ok := g.next[current]
			if !ok {
				break
			}
			if at, seen := pos[next]; seen {
				nodes := append([]string{}, path[at:]...)
				key := cycleKey(nodes)
				if !reported[key] {
					reported[key] = true
					cycles = append(cycles, PayerCycle{Origin: start, Nodes: nodes})
				}
				break
			}
			pos[next] = len(path)
			path = append(path, next)
			current = next
		}
	}

	return cycles
}

// cycleKey identifies a cycle independent of where the walk entered it.
func cycleKey(nodes []string) string {
	sorted := append([]string{}, nodes...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
