package dom

import "errors"

// Errors returned by tree operations. They mirror the exception names a
// browser engine raises for the same misuse.
var (
	ErrHierarchy        = errors.New("dom: hierarchy request error")
	ErrNotFound         = errors.New("dom: node not found")
	ErrInvalidCharacter = errors.New("dom: invalid character")
	ErrIndexSize        = errors.New("dom: index out of range")
	ErrNotSupported     = errors.New("dom: operation not supported")
	ErrSyntax           = errors.New("dom: syntax error")
	ErrInUseAttribute   = errors.New("dom: attribute already in use")
	ErrNoModification   = errors.New("dom: modification not allowed")
)
