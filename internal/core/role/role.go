package role

type Role string

const (
	Nurse      Role = "nurse"
	Approver   Role = "approver"
	Admin      Role = "admin"
	SuperAdmin Role = "super_admin"
	Developer  Role = "developer"
)

func All() []Role {
	return []Role{Nurse, Approver, Admin, SuperAdmin, Developer}
}

func (r Role) Valid() bool {
	for _, known := range All() {
		if r == known {
			return true
		}
	}
	return false
}

// CanApprove reports whether the role may approve or reject ward forms.
func (r Role) CanApprove() bool {
	return r == Approver || r.IsAdmin()
}

// IsAdmin covers every role allowed into user and log administration.
func (r Role) IsAdmin() bool {
	return r == Admin || r == SuperAdmin || r == Developer
}

// AllWards reports whether the role sees every ward regardless of assignment.
func (r Role) AllWards() bool {
	return r.IsAdmin()
}

// Outranks is used to stop admins from editing accounts above them.
func (r Role) Outranks(other Role) bool {
	return r.rank() > other.rank()
}

func (r Role) rank() int {
	switch r {
	case Nurse:
		return 1
	case Approver:
		return 2
	case Admin:
		return 3
	case SuperAdmin:
		return 4
	case Developer:
		return 5
	}
	return 0
}
