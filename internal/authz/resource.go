package authz

// Resource identifies a protected resource type.
type Resource int

const (
	ResourceTask Resource = iota
	ResourceTeam
	ResourceOrganization
	ResourceRole
	ResourceAnalytics
	ResourceBilling
	ResourceSubscription

	resourceCount
)

func (r Resource) String() string {
	switch r {
	case ResourceTask:
		return "task"
	case ResourceTeam:
		return "team"
	case ResourceOrganization:
		return "organization"
	case ResourceRole:
		return "role"
	case ResourceAnalytics:
		return "analytics"
	case ResourceBilling:
		return "billing"
	case ResourceSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Segment is the URL path segment that precedes a resource identifier.
func (r Resource) Segment() string {
	switch r {
	case ResourceTask:
		return "tasks"
	case ResourceTeam:
		return "teams"
	case ResourceOrganization:
		return "orgs"
	case ResourceRole:
		return "roles"
	case ResourceAnalytics:
		return "analytics"
	case ResourceBilling:
		return "billing"
	case ResourceSubscription:
		return "subscriptions"
	default:
		return ""
	}
}

// Action identifies what the caller wants to do with the resource.
type Action int

const (
	ActionView Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete

	actionCount
)

func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}
