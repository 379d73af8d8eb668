package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/fundval-backend/internal/api/request"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// ValidateLedgerEntry validates a ledger entry create or replace request.
//
// Required fields:
//   - accountId: valid UUID
//   - fundId (valid UUID) or fundCode
//   - type: BUY or SELL
//   - operationDate: YYYY-MM-DD
//   - share: positive
//   - amount, nav: zero or positive
func ValidateLedgerEntry(req request.LedgerEntryRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.AccountID); err != nil {
		errors["accountId"] = "accountId must be a valid UUID"
	}

	switch {
	case req.FundID != "":
		if err := ValidateUUID(req.FundID); err != nil {
			errors["fundId"] = "fundId must be a valid UUID"
		}
	case strings.TrimSpace(req.FundCode) == "":
		errors["fundId"] = "fundId or fundCode is required"
	}

	if strings.TrimSpace(req.Type) == "" {
		errors["type"] = "type is required"
	} else if !model.EntryType(req.Type).Valid() {
		errors["type"] = fmt.Sprintf("invalid type: %s", req.Type)
	}

	checkDate(errors, "operationDate", req.OperationDate)

	if !req.Share.IsPositive() {
		errors["share"] = "share must be positive"
	}
	if req.Amount.IsNegative() {
		errors["amount"] = "amount cannot be negative"
	}
	if req.Nav.IsNegative() {
		errors["nav"] = "nav cannot be negative"
	}

	return result(errors)
}

// ValidateBatchDelete validates a batch deletion request.
// An empty list is rejected with ErrEmptyIDList; every id must be a UUID.
func ValidateBatchDelete(req request.BatchDeleteRequest) error {
	return ValidateUUIDs(req.IDs)
}
