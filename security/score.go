package security

import "sort"

// LevelForScore maps a score onto the configured bands. Each cutoff is an
// inclusive lower bound.
func LevelForScore(score int, opts *Options) RiskLevel {
	switch {
	case score >= opts.CriticalRiskThreshold:
		return RiskLevelCritical
	case score >= opts.HighRiskThreshold:
		return RiskLevelHigh
	case score >= opts.MediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Aggregate combines rule results into an AnalysisResult without advice.
// Each rule name counts once; a repeated name keeps its first result.
// Factors follow the rules' priority order so the output does not depend on
// evaluation order.
func Aggregate(results []RuleResult, opts *Options) *AnalysisResult {
	byName := make(map[string]RuleResult, len(results))
	var extra []string
	for _, r := range results {
		if _, seen := byName[r.RuleName]; seen {
			continue
		}
		byName[r.RuleName] = r
		if !isBuiltinRule(r.RuleName) {
			extra = append(extra, r.RuleName)
		}
	}

	analysis := &AnalysisResult{
		RiskFactors:    []string{},
		SecurityAdvice: []string{},
		TriggeredRules: make(map[string]bool),
		ScoreBreakdown: make(map[string]int),
	}

	seenFactors := make(map[string]struct{})
	for _, name := range append(RuleNames(), sortedCopy(extra)...) {
		r, ok := byName[name]
		if !ok || !r.Triggered() {
			continue
		}
		analysis.TriggeredRules[name] = true
		analysis.ScoreBreakdown[name] = r.Score
		analysis.RiskScore += r.Score
		for _, factor := range r.Factors {
			if _, dup := seenFactors[factor]; dup {
				continue
			}
			seenFactors[factor] = struct{}{}
			analysis.RiskFactors = append(analysis.RiskFactors, factor)
		}
	}

	if opts.MaxRiskScore > 0 && analysis.RiskScore > opts.MaxRiskScore {
		analysis.RiskScore = opts.MaxRiskScore
	}
	analysis.RiskLevel = LevelForScore(analysis.RiskScore, opts)
	return analysis
}

func isBuiltinRule(name string) bool {
	for _, builtin := range RuleNames() {
		if name == builtin {
			return true
		}
	}
	return false
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
