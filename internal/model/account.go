package model

import "time"

// Account is a node in the two-level ownership tree.
// A nil ParentID marks a root account; only child accounts hold ledger entries and positions.
type Account struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRoot reports whether the account sits at the top of the hierarchy.
func (a Account) IsRoot() bool {
	return a.ParentID == nil
}

// AccountNode is a root account together with its children, used for tree listings.
type AccountNode struct {
	Account
	Children []Account `json:"children"`
}
