package rbac

// Role names. Keep these stable; they are embedded in issued tokens and seeded
// by migrations/schema.sql.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleAuthor = "author"
	RoleMember = "member"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
