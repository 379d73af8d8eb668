package request

// CreateWatchlistRequest is the request body for creating a watchlist.
type CreateWatchlistRequest struct {
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
}

// RenameWatchlistRequest is the request body for renaming a watchlist.
type RenameWatchlistRequest struct {
	Name string `json:"name"`
}

// AddWatchlistItemRequest adds a fund to a watchlist, either by ID or by code.
// A code that is not known yet creates the fund.
type AddWatchlistItemRequest struct {
	FundID   string `json:"fundId,omitempty"`
	FundCode string `json:"fundCode,omitempty"`
	FundName string `json:"fundName,omitempty"`
}

// ReorderWatchlistRequest lists every fund ID of the watchlist in the new display order.
type ReorderWatchlistRequest struct {
	FundIDs []string `json:"fundIds"`
}
