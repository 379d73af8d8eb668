package request

// RecalculateRequest optionally scopes a position sweep to one account and its children.
type RecalculateRequest struct {
	AccountID *string `json:"accountId,omitempty"`
}
