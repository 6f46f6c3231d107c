package policy

// Policy describes the usage terms attached to an offer or agreement. The
// constraint expressions are opaque here; the policy engine interprets them.
type Policy struct {
	Assigner    string       `json:"assigner"`
	Assignee    string       `json:"assignee,omitempty"`
	Target      string       `json:"target"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// Constraint is a single usage condition, expressed as an evaluatable
// boolean expression over the request context.
type Constraint struct {
	Expression string `json:"expression"`
}
