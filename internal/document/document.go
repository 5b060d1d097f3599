// Package document turns claims into search documents.
package document

import (
	"github.com/Aman-CERP/claimsync/internal/claims"
)

// Document is the search-index representation of one claim.
type Document struct {
	// ID is the claim id.
	ID string
	// Index is the target index name.
	Index string
	// Fields are flat, JSON-friendly values keyed by field name.
	Fields map[string]any
}

// Mapper converts a claim into the document for the named index.
// Implementations must be pure: same claim and index, same document.
type Mapper interface {
	Map(c *claims.Claim, index string) (Document, error)
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(c *claims.Claim, index string) (Document, error)

// Map calls f(c, index).
func (f MapperFunc) Map(c *claims.Claim, index string) (Document, error) {
	return f(c, index)
}
