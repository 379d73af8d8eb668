package request

import "github.com/ndewijer/fundval-backend/internal/importer"

// ImportRequest is the request body for importing an uploaded broker feed.
// The feed's "accounts" array sits next to the owner at the top level.
type ImportRequest struct {
	OwnerID string `json:"ownerId"` // OwnerID receives the imported accounts. Required.
	importer.Feed
}
