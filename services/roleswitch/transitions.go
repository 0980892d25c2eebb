package roleswitch

import (
	"github.com/workdeck/workdeck-backend/models"
)

// NextRole is the single place the role transition rules live. Given the
// user's original role, the role they are currently acting under, and the
// requested target, it returns the resulting active role and whether the
// transition is allowed.
//
// The rules form a closed table:
//   - employees never switch
//   - admin and root may descend to employee from their original role
//   - root may descend one step to admin
//   - anyone switched may ascend back to their original role in one step
//   - root acting as employee may not jump sideways to admin
func NextRole(original, active, target models.Role) (models.Role, bool) {
	if original == models.RoleEmployee {
		return active, false
	}
	if !original.Valid() || !target.Valid() {
		return active, false
	}
	if active == "" {
		active = original
	}

	switch target {
	case models.RoleEmployee:
		// Descend only from the original role.
		if active == original {
			return models.RoleEmployee, true
		}
	case models.RoleAdmin:
		// Only root descends to admin, and only from root.
		if original == models.RoleRoot && active == models.RoleRoot {
			return models.RoleAdmin, true
		}
		// Ascending back to an original admin role.
		if original == models.RoleAdmin && active != original {
			return models.RoleAdmin, true
		}
	case models.RoleRoot:
		// Ascending back to an original root role.
		if original == models.RoleRoot && active != original {
			return models.RoleRoot, true
		}
	}

	return active, false
}
