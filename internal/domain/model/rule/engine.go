package rule

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Result is the outcome of evaluating a single rule
type Result struct {
	RuleName         string
	Matched          bool
	ActionsTriggered []Action
}

// Engine evaluates declarative rules against a transition context.
// Evaluation is read-only and safe for concurrent use across jobs; rule
// registration takes the write lock.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine creates an engine preloaded with the given rules, evaluated in
// the given order
func NewEngine(rules []Rule) (*Engine, error) {
	e := &Engine{}
	for _, r := range rules {
		if err := e.AddCustomRule(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddCustomRule registers a rule at runtime. A rule with a duplicate name
// replaces the earlier registration and moves to the end of the evaluation
// order: last registered wins.
func (e *Engine) AddCustomRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("add rule: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.rules {
		if existing.Name == r.Name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			break
		}
	}
	e.rules = append(e.rules, r)
	return nil
}

// RemoveRule deletes a rule by name and reports whether it existed
func (e *Engine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.rules {
		if existing.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a snapshot of the registered rules in evaluation order
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every registered rule of the given types (all types when
// none are given) against the context, in registration order. Unmatched
// rules trigger no actions.
func (e *Engine) Evaluate(ctx Context, types ...Type) []Result {
	e.mu.RLock()
	rules := append([]Rule(nil), e.rules...)
	e.mu.RUnlock()

	var results []Result
	for _, r := range rules {
		if len(types) > 0 && !typeIn(r.Type, types) {
			continue
		}
		matched := evalConditions(r.Conditions, ctx)
		res := Result{RuleName: r.Name, Matched: matched}
		if matched {
			res.ActionsTriggered = append([]Action(nil), r.Actions...)
		}
		results = append(results, res)
	}
	return results
}

func typeIn(t Type, types []Type) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

// evalConditions folds the condition chain strictly left to right using
// each condition's trailing logic operator. There is no precedence between
// AND and OR: c1 AND c2 OR c3 evaluates as ((c1 AND c2) OR c3). This
// matches the builder semantics the rule configuration format was designed
// around and must not be "fixed" to boolean algebra.
func evalConditions(conditions []Condition, ctx Context) bool {
	if len(conditions) == 0 {
		return true
	}

	result := evalCondition(conditions[0], ctx)
	for i := 1; i < len(conditions); i++ {
		next := evalCondition(conditions[i], ctx)
		if conditions[i-1].Logic == LogicOr {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result
}

// evalCondition evaluates one comparison. A field absent from the context
// makes the condition false rather than failing the evaluation, so a
// malformed rule degrades to a non-match instead of blocking transitions.
func evalCondition(c Condition, ctx Context) bool {
	actual, ok := ctx[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEqual:
		return looselyEqual(actual, c.Value)
	case OpNotEqual:
		return !looselyEqual(actual, c.Value)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		if !okA || !okB {
			return false
		}
		switch c.Operator {
		case OpLess:
			return a < b
		case OpLessEqual:
			return a <= b
		case OpGreater:
			return a > b
		default:
			return a >= b
		}
	case OpIn:
		return valueIn(actual, c.Value)
	case OpContains:
		return strings.Contains(stringify(actual), stringify(c.Value))
	default:
		return false
	}
}

// looselyEqual compares numerically when both sides coerce to numbers,
// otherwise by string form. Field values arrive from YAML and user input,
// so 10 and "10" must compare equal.
func looselyEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return stringify(a) == stringify(b)
}

func valueIn(actual, expected any) bool {
	switch list := expected.(type) {
	case []any:
		for _, item := range list {
			if looselyEqual(actual, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if looselyEqual(actual, item) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
