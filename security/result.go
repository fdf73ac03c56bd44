package security

import (
	"fmt"
	"strings"

	"github.com/MichaelAJay/go-login-security/errors"
)

// RiskLevel is an ordered risk classification: Low < Medium < High < Critical.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

var riskLevelNames = [...]string{"Low", "Medium", "High", "Critical"}

// String returns the persisted text form of the level.
func (l RiskLevel) String() string {
	if l < RiskLevelLow || l > RiskLevelCritical {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskLevelNames[l]
}

// IsValid reports whether l is one of the four defined levels.
func (l RiskLevel) IsValid() bool {
	return l >= RiskLevelLow && l <= RiskLevelCritical
}

// Compare returns -1, 0 or +1 depending on whether l is lower, equal or higher than other.
func (l RiskLevel) Compare(other RiskLevel) int {
	switch {
	case l < other:
		return -1
	case l > other:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether l is the same as or higher than other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l >= other
}

// ParseRiskLevel parses the text form, ignoring case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskLevelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return RiskLevel(i), nil
		}
	}
	return RiskLevelLow, errors.NewAppErrorWithCause(errors.CodeInvalidRiskLevel,
		fmt.Sprintf("unknown risk level %q", s), errors.ErrInvalidRiskLevel)
}

// MarshalText encodes the level as its name.
func (l RiskLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, errors.ErrInvalidRiskLevel
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RuleResult is one rule's contribution to an analysis run.
type RuleResult struct {
	RuleName string   `json:"rule_name"`
	Score    int      `json:"score"`
	Factors  []string `json:"factors,omitempty"`
}

// Triggered reports whether the rule contributed to the score.
func (r RuleResult) Triggered() bool {
	return r.Score > 0
}

// AnalysisResult is the aggregate outcome of evaluating every rule for one attempt.
type AnalysisResult struct {
	RiskScore      int             `json:"risk_score"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	RiskFactors    []string        `json:"risk_factors"`
	SecurityAdvice []string        `json:"security_advice"`
	TriggeredRules map[string]bool `json:"triggered_rules"`
	ScoreBreakdown map[string]int  `json:"score_breakdown"`
}

// IsTriggered reports whether ruleName contributed to this result.
func (r *AnalysisResult) IsTriggered(ruleName string) bool {
	return r.TriggeredRules[ruleName]
}

// TriggeredRuleNames returns the triggered rules in evaluation priority order.
func (r *AnalysisResult) TriggeredRuleNames() []string {
	names := make([]string, 0, len(r.TriggeredRules))
	for _, name := range RuleNames() {
		if r.TriggeredRules[name] {
			names = append(names, name)
		}
	}
	return names
}
