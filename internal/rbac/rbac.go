package rbac

type Role string
type Action string

const (
	RoleViewer  Role = "viewer"
	RoleAnalyst Role = "analyst"
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionImport Action = "import"
	ActionAdmin  Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RolePartner:
		return action == ActionRead || action == ActionWrite || action == ActionImport
	case RoleAnalyst:
		return action == ActionRead || action == ActionWrite || action == ActionImport
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAnalyst, RolePartner, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
