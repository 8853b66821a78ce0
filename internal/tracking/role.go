// Package tracking holds the per-session state of the analytics pipeline:
// the table zone, tracked identities, entrance crossings and hand trajectories.
//
// Nothing in this package is safe for concurrent use. The orchestrator owns
// one instance of each tracker and mutates them between frames only.
package tracking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRole is returned when a role name cannot be parsed.
var ErrUnknownRole = errors.New("unknown role")

// Role is the semantic meaning of a tracked identity.
type Role int

const (
	RoleUnknown Role = iota
	RoleCustomer
	RoleTable
	RoleBag
	RoleSpoon
	RoleTennisRacket
	RoleBottleOfWater
	RoleCup
)

var roleNames = map[Role]string{
	RoleUnknown:       "unknown",
	RoleCustomer:      "customer",
	RoleTable:         "table",
	RoleBag:           "bag",
	RoleSpoon:         "spoon",
	RoleTennisRacket:  "tennis_racket",
	RoleBottleOfWater: "bottle_of_water",
	RoleCup:           "cup",
}

var roleLabels = map[Role]string{
	RoleCustomer:      "Customer",
	RoleTable:         "Table",
	RoleBag:           "Bag",
	RoleSpoon:         "Spoon",
	RoleTennisRacket:  "Tennis Racket",
	RoleBottleOfWater: "Bottle of Water",
	RoleCup:           "Cup",
}

// String returns the configuration name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Label returns the human readable name drawn on frames.
func (r Role) Label() string {
	return roleLabels[r]
}

// IsItem reports whether the role is a product subject to zone checks.
func (r Role) IsItem() bool {
	switch r {
	case RoleBag, RoleSpoon, RoleTennisRacket, RoleBottleOfWater, RoleCup:
		return true
	}
	return false
}

// ParseRole parses a role name. Matching ignores case, spaces and dashes.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for r, name := range roleNames {
		if r != RoleUnknown && name == key {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// RoleMap maps upstream detector class ids to roles.
type RoleMap map[int]Role

// DefaultRoleMap returns the mapping for COCO80 class indices.
func DefaultRoleMap() RoleMap {
	return RoleMap{
		0:  RoleCustomer,
		60: RoleTable,
		24: RoleBag,
		26: RoleBag,
		44: RoleSpoon,
		38: RoleTennisRacket,
		39: RoleBottleOfWater,
		41: RoleCup,
	}
}

// Lookup returns the role for a class id, RoleUnknown when unmapped.
func (m RoleMap) Lookup(classID int) Role {
	return m[classID]
}

// Validate checks every mapped class id against the detector's class set.
func (m RoleMap) Validate(classes map[int]string) error {
	if len(m) == 0 {
		return errors.New("role map is empty")
	}

	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	hasCustomer := false
	for _, id := range ids {
		if m[id] == RoleCustomer {
			hasCustomer = true
		}
		if m[id] == RoleUnknown {
			return fmt.Errorf("class %d: mapped to unknown role", id)
		}
		if _, ok := classes[id]; !ok {
			return fmt.Errorf("class %d (%s): not produced by detector", id, m[id])
		}
	}
	if !hasCustomer {
		return errors.New("role map has no customer class")
	}
	return nil
}
