package request

// CreateAccountRequest is the request body for creating an account.
// The owner travels in the body because the API carries no caller identity.
type CreateAccountRequest struct {
	OwnerID   string  `json:"ownerId"`   // OwnerID identifies the owning user. Required.
	Name      string  `json:"name"`      // Name must be unique per owner.
	ParentID  *string `json:"parentId"`  // ParentID makes the account a child. Nil creates a root account.
	IsDefault bool    `json:"isDefault"` // IsDefault marks the owner's default root account.
}

// UpdateAccountRequest is the request body for replacing an account's attributes.
// All fields are applied: a nil ParentID turns the account into a root account.
type UpdateAccountRequest struct {
	Name      string  `json:"name"`
	ParentID  *string `json:"parentId"`
	IsDefault bool    `json:"isDefault"`
}
