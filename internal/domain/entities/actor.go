package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of actor roles. Incoming role strings are parsed
// once at the boundary with ParseRole.
type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleDoctor, RolePatient, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient || r == RoleAdmin
}

// Actor is whoever performs an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
