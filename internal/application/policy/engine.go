package policy

import (
	"context"
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

// Engine evaluates offer constraints as boolean expressions over the ingress
// request context. Every constraint must evaluate to true for the call to
// pass.
type Engine struct {
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("service", "policy").Logger()}
}

// Evaluate runs all constraints of the policy against the request context.
// A malformed constraint blocks the operation as a bad request; a constraint
// evaluating to false blocks it as forbidden.
func (e *Engine) Evaluate(ctx context.Context, pol domainPolicy.Policy, rc *gate.RequestContext) error {
	params := contextParams(rc)
	for _, c := range pol.Constraints {
		expr, err := govaluate.NewEvaluableExpression(c.Expression)
		if err != nil {
			e.logger.Debug().Err(err).Str("expression", c.Expression).Msg("malformed policy constraint")
			return svcerror.BadRequest("malformed policy constraint: %s", c.Expression)
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			e.logger.Debug().Err(err).Str("expression", c.Expression).Msg("constraint evaluation failed")
			return svcerror.BadRequest("policy constraint cannot be evaluated: %s", c.Expression)
		}
		ok, isBool := result.(bool)
		if !isBool {
			return svcerror.BadRequest("policy constraint is not boolean: %s", c.Expression)
		}
		if !ok {
			return svcerror.Forbidden("policy denies %s for %s", rc.MessageType, rc.Agent.Identity)
		}
	}
	return nil
}

// contextParams flattens the request context into expression identifiers.
// Scalar claims are exposed under "claim_<name>".
func contextParams(rc *gate.RequestContext) map[string]any {
	params := map[string]any{
		"message_type":           rc.MessageType,
		"direction":              string(rc.Direction),
		"identity":               rc.Agent.Identity,
		"participant_context_id": rc.ParticipantContextID,
	}
	for name, v := range rc.Agent.Claims {
		switch v.(type) {
		case string, bool, float64, int, int64:
			params[fmt.Sprintf("claim_%s", name)] = v
		}
	}
	return params
}
