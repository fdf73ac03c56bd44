package security

import "github.com/MichaelAJay/go-login-security/audit"

// Engine runs rules, aggregates their scores and attaches advice.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	opts  *Options
	rules []Rule
}

// NewEngine creates an Engine. With no rules given the built-in rules are used.
func NewEngine(opts *Options, rules ...Rule) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{opts: opts, rules: rules}
}

// Options returns the engine's settings.
func (e *Engine) Options() *Options {
	return e.opts
}

// Evaluate scores attempt against history.
func (e *Engine) Evaluate(attempt *audit.LoginAttempt, history History) *AnalysisResult {
	results := make([]RuleResult, 0, len(e.rules))
	for _, rule := range e.rules {
		results = append(results, rule(attempt, history, e.opts))
	}

	analysis := Aggregate(results, e.opts)
	analysis.SecurityAdvice = GenerateAdvice(analysis.TriggeredRules)
	return analysis
}
