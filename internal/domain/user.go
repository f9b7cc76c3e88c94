package domain

import (
	"sort"
	"time"
)

// RoleAdmin is the only role that is not a home code.
const RoleAdmin = "admin"

// User admin dashboard account.
type User struct {
	UserID       string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	LoginCount   int       `json:"loginCount"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash []byte    `json:"passwordHash,omitempty"`
}

// RoleSet is the set of assignable roles: admin plus every current home code.
type RoleSet map[string]struct{}

// NewRoleSet builds the role set from the homes known right now.
func NewRoleSet(homes []string) RoleSet {
	rs := RoleSet{RoleAdmin: {}}
	for _, h := range homes {
		if h != "" {
			rs[h] = struct{}{}
		}
	}
	return rs
}

func (rs RoleSet) Contains(role string) bool {
	_, ok := rs[role]
	return ok
}

// List returns admin first, then the home codes in ascending order.
func (rs RoleSet) List() []string {
	homes := make([]string, 0, len(rs))
	for r := range rs {
		if r != RoleAdmin {
			homes = append(homes, r)
		}
	}
	sort.Strings(homes)
	return append([]string{RoleAdmin}, homes...)
}
