package eir

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type unitResult struct {
	id  string
	err error
}

// parallelRunner executes independent graph units concurrently with a
// bounded worker count. Stamps stay the only durable synchronization
// primitive; in-process coordination is the state below.
type parallelRunner struct {
	graph *Graph
	bc    *BuildContext
	jobs  int

	mu      sync.Mutex
	want    map[string]bool
	done    map[string]bool
	running map[string]bool

	results chan unitResult
}

// RunTargetParallel behaves like RunTarget but dispatches units whose
// predecessors have all completed to a worker pool. Units for the same
// package/phase are already serialized by their edges, and every unit's
// environment overlay is process-local, so workers cannot observe each
// other's state.
func (g *Graph) RunTargetParallel(ctx context.Context, bc *BuildContext, targetID string, jobs int) error {
	if jobs <= 1 {
		return g.RunTarget(ctx, bc, targetID)
	}

	target, ok := g.units[targetID]
	if !ok {
		return g.RunTarget(ctx, bc, targetID) // same unknown-target error path
	}

	pr := &parallelRunner{
		graph:   g,
		bc:      bc,
		jobs:    jobs,
		want:    g.closure(target),
		done:    make(map[string]bool),
		running: make(map[string]bool),
		results: make(chan unitResult, jobs),
	}
	return pr.run(ctx)
}

// ready returns the dispatchable unit IDs, deterministically ordered.
func (pr *parallelRunner) ready() []string {
	var out []string
	for _, u := range pr.graph.order {
		if !pr.want[u.ID] || pr.done[u.ID] || pr.running[u.ID] {
			continue
		}
		ok := true
		for _, d := range u.deps {
			if !pr.done[d.ID] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, u.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (pr *parallelRunner) run(ctx context.Context) error {
	var firstErr error

	for {
		pr.mu.Lock()
		if firstErr == nil {
			for _, id := range pr.ready() {
				if len(pr.running) >= pr.jobs {
					break
				}
				u := pr.graph.units[id]
				pr.running[id] = true
				go func(u *Unit) {
					err := pr.graph.runUnit(ctx, pr.bc, u)
					pr.results <- unitResult{id: u.ID, err: err}
				}(u)
			}
		}
		active := len(pr.running)
		remaining := 0
		for id := range pr.want {
			if !pr.done[id] {
				remaining++
			}
		}
		pr.mu.Unlock()

		if active == 0 {
			if remaining == 0 {
				return nil
			}
			// Nothing running and nothing dispatchable: either a failure
			// poisoned the frontier, or the graph is stuck.
			if firstErr != nil {
				return firstErr
			}
			return fmt.Errorf("build graph stalled with %d unit(s) remaining", remaining)
		}

		res := <-pr.results
		pr.mu.Lock()
		delete(pr.running, res.id)
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
		} else {
			pr.done[res.id] = true
		}
		pr.mu.Unlock()
	}
}
