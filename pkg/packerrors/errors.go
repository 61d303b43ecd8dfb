// Package packerrors holds the error classes shared by every stage of an upgrade.
// Stage specific errors wrap one of these so callers can classify a failure with errors.Is.
package packerrors

import "errors"

var (
	// ErrConfig indicates malformed changelist or module declarations, a missing
	// required module or a cyclic module/view dependency
	ErrConfig = errors.New("configuration error")

	// ErrUpgradePath indicates a broken changelist chain between two revisions
	ErrUpgradePath = errors.New("broken upgrade path")

	// ErrDependencyConflict indicates user objects depending on managed objects about to change
	ErrDependencyConflict = errors.New("dependency conflict")

	// ErrCatalogQuery indicates a failure reading the database catalog
	ErrCatalogQuery = errors.New("catalog query failed")
)
