package enums

// Role is the principal kind carried in access tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleTutor Role = "tutor"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleTutor
}
