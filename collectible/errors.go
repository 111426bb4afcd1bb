package collectible

import "errors"

var (
	// ErrInvalidMetadata indicates a metadata field is out of range.
	ErrInvalidMetadata = errors.New("collectible: invalid metadata")

	// ErrInvalidCreators indicates the creator list is malformed.
	ErrInvalidCreators = errors.New("collectible: invalid creator list")

	// ErrNotFound indicates no metadata exists for the asset.
	ErrNotFound = errors.New("collectible: not found")

	// ErrExists indicates metadata already exists for the asset.
	ErrExists = errors.New("collectible: already exists")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("collectible: required parameter is nil")
)
