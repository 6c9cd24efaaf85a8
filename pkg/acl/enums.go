package acl

import (
	"fmt"
	"strings"
)

// Privilege defines access privilege levels for ACL checks.
// Higher privileges subsume lower ones (Administer > Operate > View).
type Privilege uint8

const (
	// PrivilegeView allows status queries.
	PrivilegeView Privilege = 1

	// PrivilegeOperate allows View plus actuation such as opening a door.
	PrivilegeOperate Privilege = 2

	// PrivilegeAdminister allows Operate plus gateway management commands.
	PrivilegeAdminister Privilege = 3
)

// String returns a human-readable name for the privilege level.
func (p Privilege) String() string {
	switch p {
	case PrivilegeView:
		return "View"
	case PrivilegeOperate:
		return "Operate"
	case PrivilegeAdminister:
		return "Administer"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the privilege is a defined value.
func (p Privilege) IsValid() bool {
	return p >= PrivilegeView && p <= PrivilegeAdminister
}

// Grants returns true if this privilege level grants the requested privilege.
func (p Privilege) Grants(requested Privilege) bool {
	return p.IsValid() && requested.IsValid() && p >= requested
}

// ParsePrivilege parses a privilege name, ignoring case.
func ParsePrivilege(s string) (Privilege, error) {
	switch strings.ToLower(s) {
	case "view":
		return PrivilegeView, nil
	case "operate":
		return PrivilegeOperate, nil
	case "administer", "admin":
		return PrivilegeAdminister, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrivilege, s)
	}
}

// Result represents the outcome of an access control check.
type Result uint8

const (
	// ResultDenied indicates access was denied (no matching ACL entry).
	ResultDenied Result = iota

	// ResultAllowed indicates access was granted by an ACL entry.
	ResultAllowed
)

// String returns a human-readable name for the result.
func (r Result) String() string {
	switch r {
	case ResultDenied:
		return "Denied"
	case ResultAllowed:
		return "Allowed"
	default:
		return "Unknown"
	}
}
