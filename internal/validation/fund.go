package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/fundval-backend/internal/api/request"
)

// ValidateGetOrCreateFund validates a fund lookup-or-create request.
func ValidateGetOrCreateFund(req request.GetOrCreateFundRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Code) == "" {
		errors["code"] = "code is required"
	} else if len(req.Code) > 10 {
		errors["code"] = "code must be 10 characters or less"
	}
	if len(req.Name) > 100 {
		errors["name"] = "name must be 100 characters or less"
	}

	return result(errors)
}

// ValidateUpdateNav validates a confirmed NAV update.
func ValidateUpdateNav(req request.UpdateNavRequest) error {
	errors := make(map[string]string)

	if !req.Nav.IsPositive() {
		errors["nav"] = "nav must be positive"
	}
	checkDate(errors, "date", req.Date)

	return result(errors)
}

// ValidateUpdateEstimate validates an intraday estimate update.
// Growth may be negative.
func ValidateUpdateEstimate(req request.UpdateEstimateRequest) error {
	errors := make(map[string]string)

	if !req.Nav.IsPositive() {
		errors["nav"] = "nav must be positive"
	}
	if strings.TrimSpace(req.Time) == "" {
		errors["time"] = "time is required"
	} else if _, err := time.Parse(time.RFC3339, req.Time); err != nil {
		errors["time"] = "time must be an RFC3339 timestamp"
	}
	if len(req.Source) > 50 {
		errors["source"] = "source must be 50 characters or less"
	}

	return result(errors)
}

// ValidateImportNavHistory validates a NAV history upload. Item errors are keyed by index.
func ValidateImportNavHistory(req request.ImportNavHistoryRequest) error {
	errors := make(map[string]string)

	if len(req.Items) == 0 {
		errors["items"] = "at least one item is required"
	}
	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		checkDate(errors, prefix+"date", item.Date)
		if seen[item.Date] {
			errors[prefix+"date"] = "date appears more than once"
		}
		seen[item.Date] = true
		if !item.UnitNav.IsPositive() {
			errors[prefix+"unitNav"] = "unitNav must be positive"
		}
		if item.AccumulatedNav.Valid && !item.AccumulatedNav.Decimal.IsPositive() {
			errors[prefix+"accumulatedNav"] = "accumulatedNav must be positive"
		}
	}

	return result(errors)
}
