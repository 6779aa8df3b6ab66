package phase

import (
	"errors"
	"fmt"
	"sort"
)

// ErrPhaseNotFound is returned when a phase name is not present in the registry
var ErrPhaseNotFound = errors.New("phase not found")

// Registry is the immutable phase table the engine runs against. It is
// built once at startup (or on explicit reload) and is safe for
// unsynchronized concurrent reads.
type Registry struct {
	phases  map[Name]*Definition
	initial Name
}

// NewRegistry builds a registry from phase definitions and validates the
// full graph invariant: no dangling references, every phase reachable from
// the initial phase, and every phase able to reach a terminal phase or
// Cancelled. Any violation refuses the configuration.
func NewRegistry(initial Name, defs []*Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, errors.New("registry: no phase definitions")
	}

	phases := make(map[Name]*Definition, len(defs))
	for _, d := range defs {
		if _, dup := phases[d.Name()]; dup {
			return nil, fmt.Errorf("registry: duplicate phase %q", d.Name())
		}
		phases[d.Name()] = d
	}

	if _, ok := phases[initial]; !ok {
		return nil, fmt.Errorf("registry: initial phase %q is not defined", initial)
	}

	// Dangling reference check
	for _, d := range phases {
		for _, next := range d.AllowedNext() {
			if _, ok := phases[next]; !ok {
				return nil, fmt.Errorf("registry: phase %q references undefined phase %q", d.Name(), next)
			}
		}
	}

	r := &Registry{phases: phases, initial: initial}

	if err := r.validateReachability(); err != nil {
		return nil, err
	}
	return r, nil
}

// validateReachability walks the graph including the implicit
// any-phase-to-Cancelled edge.
func (r *Registry) validateReachability() error {
	// Forward reachability from the initial phase
	visited := map[Name]bool{}
	queue := []Name{r.initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, next := range r.ValidNextPhases(cur) {
			queue = append(queue, next)
		}
	}
	for name := range r.phases {
		if !visited[name] {
			return fmt.Errorf("registry: phase %q is unreachable from %q", name, r.initial)
		}
	}

	// Every phase must be able to reach a terminal phase or Cancelled.
	// The implicit cancel edge satisfies this for every non-terminal phase,
	// so only a graph without any terminal state and without Cancelled can
	// fail here.
	hasExit := false
	for name, d := range r.phases {
		if d.IsTerminal() || name == Cancelled {
			hasExit = true
			break
		}
	}
	if !hasExit {
		return errors.New("registry: graph has no terminal phase and no Cancelled phase")
	}
	return nil
}

// Get looks up a phase definition by name
func (r *Registry) Get(name Name) (*Definition, error) {
	d, ok := r.phases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPhaseNotFound, name)
	}
	return d, nil
}

// Has reports whether the phase exists
func (r *Registry) Has(name Name) bool {
	_, ok := r.phases[name]
	return ok
}

// Initial returns the phase new jobs start in
func (r *Registry) Initial() Name {
	return r.initial
}

// ValidNextPhases returns the phases a job in current may move to. Every
// non-terminal phase may additionally move to Cancelled. Cancelled itself
// returns no static targets: reactivation goes back to the phase recorded
// at cancellation time, which the engine resolves per job.
func (r *Registry) ValidNextPhases(current Name) []Name {
	d, ok := r.phases[current]
	if !ok {
		return nil
	}
	next := d.AllowedNext()
	if _, hasCancelled := r.phases[Cancelled]; hasCancelled && current != Cancelled && !d.IsTerminal() {
		found := false
		for _, n := range next {
			if n == Cancelled {
				found = true
				break
			}
		}
		if !found {
			next = append(next, Cancelled)
		}
	}
	return next
}

// IsTerminal reports whether the named phase is absorbing
func (r *Registry) IsTerminal(name Name) bool {
	d, ok := r.phases[name]
	return ok && d.IsTerminal()
}

// IsBackward reports whether moving from one phase to another goes against
// the forward chain, based on phase order. Moves involving Cancelled are
// never classified as backward.
func (r *Registry) IsBackward(from, to Name) bool {
	if from == Cancelled || to == Cancelled {
		return false
	}
	f, okF := r.phases[from]
	t, okT := r.phases[to]
	return okF && okT && t.Order() < f.Order()
}

// Progress returns how far through the forward chain the phase sits, as a
// fraction in [0, 1]. Cancelled reports 0.
func (r *Registry) Progress(name Name) float64 {
	d, ok := r.phases[name]
	if !ok || d.Order() == 0 {
		return 0
	}
	max := 0
	for _, p := range r.phases {
		if p.Order() > max {
			max = p.Order()
		}
	}
	if max == 0 {
		return 0
	}
	return float64(d.Order()) / float64(max)
}

// Names returns all phase names ordered by phase order, Cancelled last
// among equals by name
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.phases))
	for n := range r.phases {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := r.phases[names[i]].Order(), r.phases[names[j]].Order()
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}
