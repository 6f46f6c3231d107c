package gate

import (
	"context"

	"github.com/rs/zerolog"

	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

// TokenRepresentation carries the credentials of an inbound protocol call.
type TokenRepresentation struct {
	Token string
}

// Claims are the verified claims extracted from a token.
type Claims map[string]any

// Agent is the verified, policy-relevant identity behind a request.
type Agent struct {
	Identity string
	Claims   Claims
}

// Direction of the call relative to the local connector.
type Direction string

const DirectionIngress Direction = "ingress"

// RequestContext is the policy evaluation context for one inbound message.
type RequestContext struct {
	MessageType          string
	Direction            Direction
	Agent                *Agent
	ParticipantContextID string
}

// IdentityVerifier verifies a token and returns its claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, token TokenRepresentation) (Claims, error)
}

// AgentResolver builds the agent from verified claims.
type AgentResolver interface {
	ResolveAgent(claims Claims) (*Agent, error)
}

// PolicyEngine evaluates a policy against the request context.
type PolicyEngine interface {
	Evaluate(ctx context.Context, pol domainPolicy.Policy, rc *RequestContext) error
}

// Gate establishes the caller's verified identity and authorizes the
// specific protocol operation before any state is touched.
type Gate struct {
	identity IdentityVerifier
	agents   AgentResolver
	engine   PolicyEngine
	logger   zerolog.Logger
}

func New(identity IdentityVerifier, agents AgentResolver, engine PolicyEngine, logger zerolog.Logger) *Gate {
	return &Gate{
		identity: identity,
		agents:   agents,
		engine:   engine,
		logger:   logger.With().Str("service", "gate").Logger(),
	}
}

// Verify checks the token, resolves the caller agent and evaluates the
// policy for the given message type. Pure verification, no side effects.
func (g *Gate) Verify(ctx context.Context, pctx *participant.Context, token TokenRepresentation, pol domainPolicy.Policy, messageType string) (*Agent, error) {
	claims, err := g.identity.Verify(ctx, token)
	if err != nil {
		g.logger.Debug().Err(err).Str("messageType", messageType).Msg("token verification failed")
		return nil, svcerror.Unauthorized("token verification failed")
	}

	agent, err := g.agents.ResolveAgent(claims)
	if err != nil {
		g.logger.Debug().Err(err).Msg("agent resolution failed")
		return nil, svcerror.Unauthorized("cannot resolve caller agent")
	}

	rc := &RequestContext{
		MessageType:          messageType,
		Direction:            DirectionIngress,
		Agent:                agent,
		ParticipantContextID: pctx.ID,
	}
	if err := g.engine.Evaluate(ctx, pol, rc); err != nil {
		g.logger.Debug().Err(err).Str("identity", agent.Identity).Str("messageType", messageType).Msg("policy evaluation failed")
		return nil, err
	}
	return agent, nil
}
