package generator

import "errors"

var (
	ErrBadDirective   = errors.New("malformed vptr directive")
	ErrBadManifest    = errors.New("invalid manifest")
	ErrUnknownType    = errors.New("type not found in package scope")
	ErrNotAStruct     = errors.New("concrete type is not a struct")
	ErrNotAnInterface = errors.New("type is not an interface")
	ErrMissingMethod  = errors.New("concrete type does not implement interface")
	ErrMissingField   = errors.New("no embedded dispatch field for interface")
	ErrDuplicateField = errors.New("multiple dispatch fields for one interface")
	ErrDuplicatePair  = errors.New("pair declared more than once")
)
