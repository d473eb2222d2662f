package catalog

import "errors"

// Sentinel errors returned by the catalog boundary.
var (
	ErrCatalogEmpty  = errors.New("catalog is empty")
	ErrInvalidItem   = errors.New("invalid catalog item")
	ErrDuplicateItem = errors.New("duplicate catalog item")
	ErrLoadCatalog   = errors.New("load catalog failed")
)
