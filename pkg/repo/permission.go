package repo

// Permission is one of the four strictly ordered permission levels.
//
// The total order NONE < READ < WRITE < ADMINISTRATE is relied on by every
// access check in the repository: a check for level L succeeds for any
// effective permission >= L.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionWrite
	PermissionAdministrate
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "NONE"
	case PermissionRead:
		return "READ"
	case PermissionWrite:
		return "WRITE"
	case PermissionAdministrate:
		return "ADMINISTRATE"
	default:
		return "UNKNOWN"
	}
}

// Satisfies reports whether this level is sufficient for the required level.
func (p Permission) Satisfies(required Permission) bool {
	return p >= required
}

// ParsePermission maps the canonical level names back to their values.
// Unknown names map to NONE, matching the "no grant" default.
func ParsePermission(s string) Permission {
	switch s {
	case "READ":
		return PermissionRead
	case "WRITE":
		return PermissionWrite
	case "ADMINISTRATE":
		return PermissionAdministrate
	default:
		return PermissionNone
	}
}

// EffectivePermission computes the caller's effective permission on a
// resource.
//
// The effective permission is the maximum level among ACL entries whose
// subject matches any of the caller's identity claims (principal id or group
// membership). Absent any match the result is NONE. A caller holding the
// global administrator role is treated as having ADMINISTRATE on every
// resource, bypassing ACL lookup entirely.
func EffectivePermission(resource *Resource, caller Agent) Permission {
	if caller.Administrator {
		return PermissionAdministrate
	}

	effective := PermissionNone
	for _, entry := range resource.ACL {
		if entry.Permission <= effective {
			continue
		}
		for _, subject := range caller.Subjects() {
			if entry.SID == subject {
				effective = entry.Permission
				break
			}
		}
	}

	return effective
}
