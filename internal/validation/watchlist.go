package validation

import (
	"strings"

	"github.com/ndewijer/fundval-backend/internal/api/request"
)

func checkWatchlistName(errors map[string]string, name string) {
	if strings.TrimSpace(name) == "" {
		errors["name"] = "name is required"
	} else if len(name) > 100 {
		errors["name"] = "name must be 100 characters or less"
	}
}

// ValidateCreateWatchlist validates a watchlist creation request.
func ValidateCreateWatchlist(req request.CreateWatchlistRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.OwnerID) == "" {
		errors["ownerId"] = "ownerId is required"
	}
	checkWatchlistName(errors, req.Name)

	return result(errors)
}

// ValidateRenameWatchlist validates a watchlist rename request.
func ValidateRenameWatchlist(req request.RenameWatchlistRequest) error {
	errors := make(map[string]string)
	checkWatchlistName(errors, req.Name)
	return result(errors)
}

// ValidateAddWatchlistItem requires exactly one of fundId and fundCode.
func ValidateAddWatchlistItem(req request.AddWatchlistItemRequest) error {
	errors := make(map[string]string)

	hasID := strings.TrimSpace(req.FundID) != ""
	hasCode := strings.TrimSpace(req.FundCode) != ""
	switch {
	case hasID && hasCode:
		errors["fundId"] = "give either fundId or fundCode, not both"
	case !hasID && !hasCode:
		errors["fundId"] = "fundId or fundCode is required"
	case hasID:
		if ValidateUUID(req.FundID) != nil {
			errors["fundId"] = "fundId must be a valid UUID"
		}
	case len(req.FundCode) > 10:
		errors["fundCode"] = "fundCode must be 10 characters or less"
	}
	if len(req.FundName) > 100 {
		errors["fundName"] = "fundName must be 100 characters or less"
	}

	return result(errors)
}

// ValidateReorderWatchlist checks the order list is non-empty and free of duplicates.
// Whether it matches the watchlist's funds is checked against the stored items.
func ValidateReorderWatchlist(req request.ReorderWatchlistRequest) error {
	errors := make(map[string]string)

	if len(req.FundIDs) == 0 {
		errors["fundIds"] = "fundIds is required"
	}
	seen := make(map[string]bool, len(req.FundIDs))
	for _, id := range req.FundIDs {
		if seen[id] {
			errors["fundIds"] = "fundIds must not repeat a fund"
			break
		}
		seen[id] = true
	}

	return result(errors)
}
