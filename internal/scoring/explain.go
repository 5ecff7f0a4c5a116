package scoring

import "strings"

// reasonPhrase maps a pattern tag to the clause used to build
// primary_reason. Grounded on the original explanation_generator.py's
// short, declarative phrasing.
var reasonPhrase = map[string]string{
	PatternCycle:           "participates in a suspicious transaction cycle",
	PatternFanIn:           "collects funds from an unusually large number of counterparties",
	PatternFanOut:          "disperses funds to an unusually large number of counterparties",
	PatternSmurfing:        "shows structured transfers spread across many counterparties in a short window",
	PatternShell:           "sits on a chain of low-activity intermediary accounts",
	PatternVelocity:        "shows an abnormally high transaction velocity",
	PatternCommunity:       "belongs to a densely connected account community",
	PatternHighPageRank:    "holds unusually high network influence",
	PatternHighBetweenness: "acts as a bridge between otherwise separate accounts",
}

// buildPrimaryReason builds the short explanation sentence from the
// first three canonically-ordered patterns. If no primary signal
// fired, returns the fixed "no pattern" sentence.
func buildPrimaryReason(patterns []string, hasPrimary bool) string {
	if !hasPrimary {
		return "No primary suspicious pattern detected."
	}

	n := len(patterns)
	if n > 3 {
		n = 3
	}
	clauses := make([]string, 0, n)
	for _, p := range patterns[:n] {
		if phrase, ok := reasonPhrase[p]; ok {
			clauses = append(clauses, phrase)
		}
	}
	if len(clauses) == 0 {
		return "No primary suspicious pattern detected."
	}
	return "Account " + strings.Join(clauses, "; ") + "."
}
