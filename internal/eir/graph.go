package eir

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// UnitStage identifies the kind of work a graph node performs.
type UnitStage string

const (
	UnitDownload UnitStage = "download"
	UnitVerify   UnitStage = "verify"
	UnitExtract  UnitStage = "extract"
	UnitPatch    UnitStage = "patch"
	UnitBuild    UnitStage = "build"
	UnitGoal     UnitStage = "goal"
)

// Unit is one node in the dependency graph: a (package, phase, stage) plus
// its predecessor edges. Units are planning-time objects; only their stamps
// persist.
type Unit struct {
	ID      string
	Package string
	Phase   string
	Stage   UnitStage

	deps []*Unit
}

// PhaseRef names one (package, phase) build unit in the toolchain ordering
// table.
type PhaseRef struct {
	Package string
	Phase   string
}

// ToolchainOrder encodes the bootstrap constraints of a cross toolchain:
// binary utilities before the compiler, kernel headers before the C
// library, the C library before the compiler's support library.
var ToolchainOrder = []PhaseRef{
	{"binutils", PhaseToolchain},
	{"gcc", PhaseToolchain},
	{"linux-headers", PhaseToolchain},
	{"glibc", PhaseToolchain},
	{"libstdcxx", PhaseToolchain},
}

// Synthetic goal IDs.
const (
	GoalPrepare   = "goal:prepare"
	GoalToolchain = "goal:toolchain"
)

// Graph is the explicit, introspectable DAG built from the manifests and the
// static toolchain ordering table. Construction is pure: nothing executes.
type Graph struct {
	units     map[string]*Unit
	order     []*Unit // deterministic topological order
	manifests map[string]*Manifest
}

func unitID(stage UnitStage, pkg, phase string) string {
	if phase == "" {
		return fmt.Sprintf("%s:%s", stage, pkg)
	}
	return fmt.Sprintf("%s:%s:%s", stage, phase, pkg)
}

// GoalPackage returns the aggregate goal ID for one package (depends on its
// extraction).
func GoalPackage(pkg string) string { return "goal:package:" + pkg }

// NewGraph builds the per-package chains (download -> verify -> extract ->
// patch -> build), the per-package and prepare goals, and the toolchain goal
// over the ordered (package, phase) list. It rejects duplicate packages and
// validates acyclicity by construction of a topological order.
func NewGraph(manifests []*Manifest, toolchain []PhaseRef) (*Graph, error) {
	g := &Graph{
		units:     make(map[string]*Unit),
		manifests: make(map[string]*Manifest, len(manifests)),
	}

	add := func(stage UnitStage, pkg, phase string, deps ...*Unit) *Unit {
		u := &Unit{ID: unitID(stage, pkg, phase), Package: pkg, Phase: phase, Stage: stage, deps: deps}
		g.units[u.ID] = u
		return u
	}

	prepare := &Unit{ID: GoalPrepare, Stage: UnitGoal}
	g.units[prepare.ID] = prepare

	for _, m := range manifests {
		if _, dup := g.manifests[m.Name]; dup {
			return nil, fmt.Errorf("duplicate package in graph: %s", m.Name)
		}
		g.manifests[m.Name] = m

		download := add(UnitDownload, m.Name, "")
		verify := add(UnitVerify, m.Name, "", download)
		extract := add(UnitExtract, m.Name, "", verify)

		pkgGoal := &Unit{ID: GoalPackage(m.Name), Package: m.Name, Stage: UnitGoal, deps: []*Unit{extract}}
		g.units[pkgGoal.ID] = pkgGoal
		prepare.deps = append(prepare.deps, extract)

		phases := make([]string, 0, len(m.Build))
		for phase := range m.Build {
			phases = append(phases, phase)
		}
		sort.Strings(phases)
		for _, phase := range phases {
			patch := add(UnitPatch, m.Name, phase, extract)
			add(UnitBuild, m.Name, phase, patch)
		}
	}

	goal := &Unit{ID: GoalToolchain, Stage: UnitGoal}
	g.units[goal.ID] = goal

	var prev *Unit
	for _, ref := range toolchain {
		m, ok := g.manifests[ref.Package]
		if !ok {
			colWarn.Printf("toolchain order references unknown package %s, skipping\n", ref.Package)
			continue
		}
		if _, ok := m.Build[ref.Phase]; !ok {
			colWarn.Printf("%v\n", &ConfigurationError{Package: ref.Package, Phase: ref.Phase})
			continue
		}
		build := g.units[unitID(UnitBuild, ref.Package, ref.Phase)]
		// The ordering is real: each entry must complete before the next
		// one starts, so consecutive entries get a chain edge.
		if prev != nil {
			build.deps = append(build.deps, prev)
		}
		goal.deps = append(goal.deps, build)
		prev = build
	}

	order, err := g.topoOrder()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoOrder is a deterministic Kahn sort: ties broken by unit ID.
func (g *Graph) topoOrder() ([]*Unit, error) {
	indeg := make(map[string]int, len(g.units))
	succ := make(map[string][]*Unit, len(g.units))
	for _, u := range g.units {
		indeg[u.ID] += 0
		for _, d := range u.deps {
			indeg[u.ID]++
			succ[d.ID] = append(succ[d.ID], u)
		}
	}

	var ready []string
	for id, n := range indeg {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]*Unit, 0, len(g.units))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		u := g.units[id]
		order = append(order, u)

		changed := false
		for _, s := range succ[id] {
			indeg[s.ID]--
			if indeg[s.ID] == 0 {
				ready = append(ready, s.ID)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.units) {
		return nil, fmt.Errorf("dependency cycle detected in build graph")
	}
	return order, nil
}

// HasUnit reports whether an ID names a node in the graph.
func (g *Graph) HasUnit(id string) bool {
	_, ok := g.units[id]
	return ok
}

// Manifest returns the loaded manifest for a package, or nil.
func (g *Graph) Manifest(pkg string) *Manifest {
	return g.manifests[pkg]
}

// Units returns every unit ID in topological order, for introspection.
func (g *Graph) Units() []string {
	ids := make([]string, 0, len(g.order))
	for _, u := range g.order {
		ids = append(ids, u.ID)
	}
	return ids
}

// Describe prints the graph as "unit <- deps" lines in topological order.
func (g *Graph) Describe() string {
	var b strings.Builder
	for _, u := range g.order {
		b.WriteString(u.ID)
		if len(u.deps) > 0 {
			names := make([]string, 0, len(u.deps))
			for _, d := range u.deps {
				names = append(names, d.ID)
			}
			sort.Strings(names)
			b.WriteString(" <- ")
			b.WriteString(strings.Join(names, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// closure collects the transitive dependency set of a target, inclusive.
func (g *Graph) closure(target *Unit) map[string]bool {
	want := make(map[string]bool)
	var visit func(u *Unit)
	visit = func(u *Unit) {
		if want[u.ID] {
			return
		}
		want[u.ID] = true
		for _, d := range u.deps {
			visit(d)
		}
	}
	visit(target)
	return want
}

// RunTarget executes the target unit and its transitive predecessors in
// topological order. Every unit consults its durable completion state first,
// so re-runs after a partial failure re-execute only unfinished work.
func (g *Graph) RunTarget(ctx context.Context, bc *BuildContext, targetID string) error {
	target, ok := g.units[targetID]
	if !ok {
		return fmt.Errorf("unknown build target: %s", targetID)
	}

	want := g.closure(target)
	for _, u := range g.order {
		if !want[u.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.runUnit(ctx, bc, u); err != nil {
			return err
		}
	}
	return nil
}

// runUnit dispatches one unit to its pipeline step. Download and extract
// are idempotent by observing the filesystem; patch and build are guarded
// by stamps inside their steps.
func (g *Graph) runUnit(ctx context.Context, bc *BuildContext, u *Unit) error {
	if u.Stage == UnitGoal {
		return nil
	}

	m := g.manifests[u.Package]
	if m == nil {
		return fmt.Errorf("no manifest for package %s", u.Package)
	}

	switch u.Stage {
	case UnitDownload:
		if _, err := os.Stat(m.SourcePath(bc)); err == nil {
			debugf("source present: %s\n", m.File)
			return nil
		}
		return fetchSource(ctx, bc, m)
	case UnitVerify:
		if _, err := os.Stat(bc.srcDir(m)); err == nil {
			// Already admitted into the build tree by an earlier run.
			return nil
		}
		return verifySource(bc, m)
	case UnitExtract:
		if _, err := os.Stat(bc.srcDir(m)); err == nil {
			debugf("already extracted: %s\n", m.Longname())
			return nil
		}
		if !bc.Quiet {
			colArrow.Print("-> ")
			colSuccess.Printf("Extracting %s\n", m.File)
		}
		return extractArchive(m.SourcePath(bc), bc.BuildRoot, func(name string) {
			verbosef("  %s\n", name)
		})
	case UnitPatch:
		return applyPatches(ctx, bc, m, u.Phase)
	case UnitBuild:
		return buildPhase(ctx, bc, m, u.Phase)
	default:
		return fmt.Errorf("unknown unit stage %q", u.Stage)
	}
}
