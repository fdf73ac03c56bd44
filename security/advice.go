package security

// Advice strings shown to users and administrators.
const (
	AdviceEnableTwoFactor   = "Enable two-factor authentication for this account."
	AdviceChangePassword    = "Consider changing your password."
	AdviceReportSharedIP    = "Several accounts were targeted from the same network; report this activity to an administrator."
	AdviceVerifyLogin       = "Verify this login was you."
	AdviceReviewDevices     = "Review recent sign-ins and remove devices you do not recognize."
	AdviceReviewUnusualTime = "This sign-in happened at an unusual hour; confirm it was expected."
)

// adviceByRule maps each rule to its advice, most security-critical first.
var adviceByRule = map[string][]string{
	RuleAccountBruteForce: {AdviceEnableTwoFactor, AdviceChangePassword},
	RuleIPBruteForce:      {AdviceEnableTwoFactor, AdviceChangePassword, AdviceReportSharedIP},
	RuleNewDeviceLocation: {AdviceVerifyLogin, AdviceReviewDevices},
	RuleUnusualTime:       {AdviceReviewUnusualTime},
}

// GenerateAdvice returns deduplicated advice for the triggered rules in
// rule priority order. Unknown rule names are ignored.
func GenerateAdvice(triggered map[string]bool) []string {
	advice := []string{}
	seen := make(map[string]struct{})
	for _, rule := range RuleNames() {
		if !triggered[rule] {
			continue
		}
		for _, text := range adviceByRule[rule] {
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			advice = append(advice, text)
		}
	}
	return advice
}
