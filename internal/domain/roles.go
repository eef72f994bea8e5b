package domain

// Role is one of the fixed set of claimable player identities. A role is
// unique across active players; uniqueness is enforced by the store at
// insert time, never by client-side locking.
type Role string

const (
	RoleDroit          Role = "DROIT"
	RoleNurs           Role = "NURS"
	RoleTheologie      Role = "THEOLOGIE"
	RoleInformatique   Role = "INFORMATIQUE"
	RoleLangueAnglaise Role = "LANGUE_ANGLAISE"
	RoleCommunication  Role = "COMMUNICATION"
	RoleGestion        Role = "GESTION"
	RolePersonnel      Role = "PERSONNEL"
)

// MaxPlayers is the fixed player capacity, one per role.
const MaxPlayers = 8

// Roles lists every claimable role in display order.
var Roles = []Role{
	RoleDroit,
	RoleNurs,
	RoleTheologie,
	RoleInformatique,
	RoleLangueAnglaise,
	RoleCommunication,
	RoleGestion,
	RolePersonnel,
}

var roleDisplayNames = map[Role]string{
	RoleDroit:          "Droit",
	RoleNurs:           "Nurs",
	RoleTheologie:      "Théologie",
	RoleInformatique:   "Informatique",
	RoleLangueAnglaise: "Langue Anglaise",
	RoleCommunication:  "Communication",
	RoleGestion:        "Gestion",
	RolePersonnel:      "Personnel",
}

// Valid reports whether r belongs to the fixed role set.
func (r Role) Valid() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// DisplayName returns the human-facing role label.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}
