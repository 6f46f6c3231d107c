package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

func requestContext() *gate.RequestContext {
	return &gate.RequestContext{
		MessageType:          "ContractRequestMessage",
		Direction:            gate.DirectionIngress,
		Agent:                &gate.Agent{Identity: "did:web:consumer", Claims: gate.Claims{"region": "eu", "score": 42.0}},
		ParticipantContextID: "pctx-1",
	}
}

func policyWith(exprs ...string) domainPolicy.Policy {
	pol := domainPolicy.Policy{}
	for _, e := range exprs {
		pol.Constraints = append(pol.Constraints, domainPolicy.Constraint{Expression: e})
	}
	return pol
}

func TestEvaluateAllConstraintsPass(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	pol := policyWith(
		`identity == "did:web:consumer"`,
		`claim_region == "eu"`,
		`claim_score >= 40`,
		`direction == "ingress"`,
	)
	require.NoError(t, e.Evaluate(context.Background(), pol, requestContext()))
}

func TestEvaluateEmptyPolicyPasses(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.Evaluate(context.Background(), domainPolicy.Policy{}, requestContext()))
}

func TestEvaluateFalseConstraintForbids(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.Evaluate(context.Background(), policyWith(`claim_region == "us"`), requestContext())
	require.Error(t, err)
	assert.Equal(t, svcerror.KindForbidden, svcerror.KindOf(err))
}

func TestEvaluateMalformedConstraint(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.Evaluate(context.Background(), policyWith(`claim_region ==`), requestContext())
	require.Error(t, err)
	assert.Equal(t, svcerror.KindBadRequest, svcerror.KindOf(err))
}

func TestEvaluateNonBooleanConstraint(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.Evaluate(context.Background(), policyWith(`claim_score + 1`), requestContext())
	require.Error(t, err)
	assert.Equal(t, svcerror.KindBadRequest, svcerror.KindOf(err))
}

func TestEvaluateUnknownIdentifier(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.Evaluate(context.Background(), policyWith(`claim_missing == "x"`), requestContext())
	require.Error(t, err)
	assert.Equal(t, svcerror.KindBadRequest, svcerror.KindOf(err))
}
