package model

// ImportResult summarizes one broker feed import.
type ImportResult struct {
	AccountsCreated int `json:"accountsCreated"`
	AccountsSkipped int `json:"accountsSkipped"`
	HoldingsCreated int `json:"holdingsCreated"`
	HoldingsSkipped int `json:"holdingsSkipped"`
	Recalculated    int `json:"recalculated"`
}
