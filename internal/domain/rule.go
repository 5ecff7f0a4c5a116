package domain

// RuleConfig defines one custom CEL-expression overlay rule that
// contributes additional additive suspicion points on top of the seven
// mandated extractors. See internal/customrules.
type RuleConfig struct {
	ID          string
	Name        string
	Description string

	// Expression is a CEL expression evaluated against an account's
	// post-extraction feature record (the "account" map built by
	// internal/customrules). Must evaluate to bool, int, or double; a
	// bare dyn feature lookup such as account.shell is also accepted.
	Expression string

	// Points is added to the account's suspicion score when Expression
	// evaluates truthy (non-zero).
	Points float64

	Enabled bool
}
