package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrAccountNotFound indicates that an account with the given ID does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrFundNotFound indicates that a fund with the given ID or code does not exist.
	ErrFundNotFound = errors.New("fund not found")

	// ErrLedgerEntryNotFound indicates that a ledger entry with the given ID does not exist.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	// ErrPositionNotFound indicates that no position exists for the given ID or account/fund pair.
	ErrPositionNotFound = errors.New("position not found")

	// ErrDefaultAccountNotFound indicates that the owner has no default account.
	ErrDefaultAccountNotFound = errors.New("default account not found")

	// ErrWatchlistNotFound indicates that a watchlist with the given ID does not exist.
	ErrWatchlistNotFound = errors.New("watchlist not found")

	// ErrWatchlistItemNotFound indicates that the fund is not on the watchlist.
	ErrWatchlistItemNotFound = errors.New("watchlist item not found")
)

// Account hierarchy errors. Each one is raised before any write happens.
var (
	// ErrDefaultAccountHasParent indicates that a default account was given a parent.
	// Only root accounts can be the default.
	ErrDefaultAccountHasParent = errors.New("default account must be a root account")

	// ErrAccountDepthExceeded indicates that the hierarchy would grow past parent -> child.
	ErrAccountDepthExceeded = errors.New("account hierarchy is limited to two levels")

	// ErrDuplicateAccountName indicates that the owner already has an account with this name.
	ErrDuplicateAccountName = errors.New("account name already exists for owner")

	// ErrAccountOwnerMismatch indicates that parent and child belong to different owners.
	ErrAccountOwnerMismatch = errors.New("parent account belongs to another owner")

	// ErrAccountHasLedger indicates that an account holding ledger entries cannot become a root account.
	ErrAccountHasLedger = errors.New("account with ledger entries must stay a child account")

	// ErrDefaultAccountDeletion indicates an attempt to delete the owner's default account.
	ErrDefaultAccountDeletion = errors.New("default account cannot be deleted")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrLedgerOnRootAccount indicates that a ledger entry targets a root (parent) account.
	ErrLedgerOnRootAccount = errors.New("ledger entries can only be recorded on child accounts")

	// ErrPositionOnRootAccount indicates that a position would be written for a root account.
	ErrPositionOnRootAccount = errors.New("positions can only be held by child accounts")

	// ErrInsufficientShares indicates that a sell cannot be recorded
	// because the account does not hold enough shares of the fund at that point in the ledger.
	ErrInsufficientShares = errors.New("insufficient shares for sale")

	// ErrEmptyIDList indicates that a batch operation received no IDs.
	ErrEmptyIDList = errors.New("ID list cannot be empty")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrDuplicateWatchlistName indicates that the owner already has a watchlist with this name.
	ErrDuplicateWatchlistName = errors.New("watchlist name already exists for owner")

	// ErrDuplicateWatchlistItem indicates that the fund is already on the watchlist.
	ErrDuplicateWatchlistItem = errors.New("fund already on watchlist")

	// ErrWatchlistOrderMismatch indicates that a reorder did not list every fund of the watchlist exactly once.
	ErrWatchlistOrderMismatch = errors.New("reorder must list every fund on the watchlist exactly once")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	// ErrRecalculationIncomplete indicates that at least one position failed during a bulk recalculation.
	ErrRecalculationIncomplete = errors.New("position recalculation incomplete")

	ErrFailedToRetrieveAccounts  = errors.New("failed to retrieve accounts")
	ErrFailedToRetrieveFunds     = errors.New("failed to retrieve funds")
	ErrFailedToRetrievePositions = errors.New("failed to retrieve positions")
	ErrFailedToRetrieveEntries   = errors.New("failed to retrieve ledger entries")
	ErrFailedToImport            = errors.New("failed to import broker feed")
	ErrFailedToRetrieveNavs      = errors.New("failed to retrieve nav history")
	ErrFailedToRetrieveAccuracy  = errors.New("failed to retrieve estimate accuracy")
	ErrFailedToRetrieveWatchlist = errors.New("failed to retrieve watchlists")
)

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrFundNotFound) ||
		errors.Is(err, ErrLedgerEntryNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrDefaultAccountNotFound) ||
		errors.Is(err, ErrWatchlistNotFound) ||
		errors.Is(err, ErrWatchlistItemNotFound)
}

// IsValidation reports whether err is a business-rule violation that the caller can fix.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrDefaultAccountHasParent,
		ErrAccountDepthExceeded,
		ErrDuplicateAccountName,
		ErrAccountOwnerMismatch,
		ErrAccountHasLedger,
		ErrDefaultAccountDeletion,
		ErrLedgerOnRootAccount,
		ErrPositionOnRootAccount,
		ErrInsufficientShares,
		ErrEmptyIDList,
		ErrInvalidUUID,
		ErrDuplicateEntry,
		ErrDuplicateWatchlistName,
		ErrDuplicateWatchlistItem,
		ErrWatchlistOrderMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
