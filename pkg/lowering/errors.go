// Package lowering is the C4 component: pointer and aggregate lowering
// routines built on top of pkg/codebuilder's stack-machine primitives.
// Nothing here walks the AST directly — pkg/codegen (C5) calls into this
// package with already-resolved types and a stack already holding the
// operands each routine's contract names.
package lowering

import "errors"

var (
	ErrNotAPointer       = errors.New("lowering: operation requires a pointer type")
	ErrNotAnAggregate    = errors.New("lowering: operation requires a struct/union or array type")
	ErrUnsupportedElement = errors.New("lowering: unsupported element type for this operation")
	ErrNestedArrayTooDeep = errors.New("lowering: nested array dimension exceeds the supported depth of 3")
)
