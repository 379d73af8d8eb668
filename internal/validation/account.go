package validation

import (
	"strings"

	"github.com/ndewijer/fundval-backend/internal/api/request"
)

// maxAccountNameLength matches the account.name column.
const maxAccountNameLength = 100

// ValidateCreateAccount validates an account creation request.
//
// Required fields:
//   - ownerId: non-empty
//   - name: non-empty, 100 characters or less
//
// parentId, when present, must be a valid UUID. Hierarchy rules that need the
// database (depth, ownership, default placement) are enforced by the account service.
func ValidateCreateAccount(req request.CreateAccountRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.OwnerID) == "" {
		errors["ownerId"] = "ownerId is required"
	}
	checkAccountFields(errors, req.Name, req.ParentID)

	return result(errors)
}

// ValidateUpdateAccount validates an account replacement request.
func ValidateUpdateAccount(req request.UpdateAccountRequest) error {
	errors := make(map[string]string)
	checkAccountFields(errors, req.Name, req.ParentID)
	return result(errors)
}

func checkAccountFields(errors map[string]string, name string, parentID *string) {
	if strings.TrimSpace(name) == "" {
		errors["name"] = "name is required"
	} else if len(name) > maxAccountNameLength {
		errors["name"] = "name must be 100 characters or less"
	}

	if parentID != nil {
		if err := ValidateUUID(*parentID); err != nil {
			errors["parentId"] = "parentId must be a valid UUID"
		}
	}
}
