package validation

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/sitewise/estimator/common/models"
)

// PolicyEvaluator evaluates configurable item-quality rules written in CEL.
// Each rule is an expression over an `item` document; a rule evaluating to
// false produces a warning. Rules never block confirmation.
type PolicyEvaluator struct {
	rules []policyRule
	mu    sync.RWMutex
}

type policyRule struct {
	expr    string
	program cel.Program
}

// NewPolicyEvaluator compiles the given rules. A rule that fails to compile is
// skipped and reported in the returned error list; the evaluator still works
// with the rules that compiled.
func NewPolicyEvaluator(rules []string) (*PolicyEvaluator, []error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
	)
	if err != nil {
		return nil, []error{fmt.Errorf("create CEL env: %w", err)}
	}

	evaluator := &PolicyEvaluator{}
	var compileErrs []error

	for _, expr := range rules {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			compileErrs = append(compileErrs, fmt.Errorf("compile policy rule %q: %w", expr, issues.Err()))
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			compileErrs = append(compileErrs, fmt.Errorf("program policy rule %q: %w", expr, err))
			continue
		}
		evaluator.rules = append(evaluator.rules, policyRule{expr: expr, program: prg})
	}

	return evaluator, compileErrs
}

// RuleCount returns the number of compiled rules
func (p *PolicyEvaluator) RuleCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rules)
}

// Check evaluates all rules against the item and returns one warning per rule
// that is not satisfied. Evaluation errors also surface as warnings so a bad
// rule never blocks an operation.
func (p *PolicyEvaluator) Check(item *models.LibraryItem) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var warnings []string
	doc := item.Document()

	for _, rule := range p.rules {
		out, _, err := rule.program.Eval(map[string]interface{}{
			"item": doc,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("policy rule %q failed to evaluate: %v", rule.expr, err))
			continue
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			warnings = append(warnings, fmt.Sprintf("policy rule %q did not return a boolean", rule.expr))
			continue
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("policy rule not satisfied: %s", rule.expr))
		}
	}

	return warnings
}
