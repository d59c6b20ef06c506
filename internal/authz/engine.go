package authz

import (
	"context"
	"fmt"

	"taskhive.io/internal/identity"
)

// ResourceContext carries the request-scoped facts an authorization decision
// may need. It is never persisted.
type ResourceContext struct {
	Resource    Resource
	RequesterID string
	OwnerID     string
	TargetID    string
}

// OwnerLookup resolves the owner of a resource instance. Implemented by the
// business-layer repositories; the engine only consumes the fact.
type OwnerLookup interface {
	Owner(ctx context.Context, res Resource, id string) (string, error)
}

type ruleKey struct {
	res Resource
	act Action
}

type ruleFunc func(role identity.Role, rc *ResourceContext) bool

// Engine is the single decision point for "may this identity do this action
// on this resource". Decisions are pure per call; the rule table is built
// once at startup.
type Engine struct {
	rules map[ruleKey]ruleFunc
}

// NewEngine builds the decision table and verifies every resource/action
// combination has a rule, so a missing pair is a startup failure rather than
// a silent runtime default.
func NewEngine() (*Engine, error) {
	e := &Engine{rules: make(map[ruleKey]ruleFunc)}

	e.rules[ruleKey{ResourceTask, ActionView}] = taskView
	e.rules[ruleKey{ResourceTask, ActionCreate}] = requireCreate
	e.rules[ruleKey{ResourceTask, ActionUpdate}] = ownsOrSenior
	e.rules[ruleKey{ResourceTask, ActionDelete}] = ownsOrSenior

	for _, res := range []Resource{ResourceTeam, ResourceOrganization} {
		e.rules[ruleKey{res, ActionView}] = allow
		e.rules[ruleKey{res, ActionCreate}] = requireCreate
		e.rules[ruleKey{res, ActionUpdate}] = requireMemberTier
		e.rules[ruleKey{res, ActionDelete}] = requireMemberTier
	}

	for _, res := range []Resource{ResourceRole, ResourceAnalytics, ResourceBilling, ResourceSubscription} {
		for act := Action(0); act < actionCount; act++ {
			e.rules[ruleKey{res, act}] = adminOnly
		}
	}

	for res := Resource(0); res < resourceCount; res++ {
		for act := Action(0); act < actionCount; act++ {
			if _, ok := e.rules[ruleKey{res, act}]; !ok {
				return nil, fmt.Errorf("authz: no rule for %s/%s", res, act)
			}
		}
	}
	return e, nil
}

// Decide evaluates the rule table. Administrative roles bypass every other
// check; unmatched pairs deny.
func (e *Engine) Decide(role identity.Role, res Resource, act Action, rc *ResourceContext) bool {
	if role.IsAdmin() {
		return true
	}
	if !role.Active {
		return false
	}
	rule, ok := e.rules[ruleKey{res, act}]
	if !ok {
		return false
	}
	return rule(role, rc)
}

// View on list endpoints carries no target; instance views fall back to the
// ownership comparator.
func taskView(role identity.Role, rc *ResourceContext) bool {
	if rc == nil || rc.TargetID == "" {
		return true
	}
	return ownsOrSenior(role, rc)
}

// ownsOrSenior is the ownership comparator: requester matches the owner, or
// the role's seniority overrides. Decisions that need context but receive
// none deny, never assume.
func ownsOrSenior(role identity.Role, rc *ResourceContext) bool {
	if rc == nil || rc.OwnerID == "" || rc.RequesterID == "" {
		return false
	}
	if rc.RequesterID == rc.OwnerID {
		return true
	}
	return role.IsAdmin()
}

func requireCreate(role identity.Role, _ *ResourceContext) bool {
	return role.CanCreateResources()
}

// Membership refinement happens downstream; the gate only rules out
// completely unprivileged roles.
func requireMemberTier(role identity.Role, _ *ResourceContext) bool {
	return role.AtLeastMember()
}

func allow(identity.Role, *ResourceContext) bool { return true }

func adminOnly(identity.Role, *ResourceContext) bool { return false }
