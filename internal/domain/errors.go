package domain

import "errors"

var (
	// ErrInvalidArgument indicates malformed calendar or query input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAuthExpired indicates the provider rejected the stored refresh
	// token; the athlete must re-run the authorization flow.
	ErrAuthExpired = errors.New("authorization expired")
	// ErrImportFailed indicates a provider or network failure during an
	// import pass. Activities persisted before the failure remain valid.
	ErrImportFailed = errors.New("import failed")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("resource not found")
)
