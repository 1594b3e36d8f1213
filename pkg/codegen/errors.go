// Package codegen is the C5 component: the AST driver. It walks a
// resolved cminorast.TranslationUnit in enter/leave order, maintains
// per-method scopes and control contexts, and calls pkg/lowering (C4)
// and pkg/codebuilder (C3) to do the actual emission. Nothing here picks
// JVM opcodes directly except the handful of bare stack-shape operations
// (pop/dup for statement/expression boundaries) that don't belong in
// either lower-level package.
package codegen

import "errors"

var (
	// Address-taking errors (spec.md §7).
	ErrFunctionPointerUnsupported = errors.New("codegen: function pointers are not supported")
	ErrAddressOfNonLifted         = errors.New("codegen: address-of a declaration that was not marked for heap-lifting")
	ErrAddressOfField             = errors.New("codegen: address-of a struct/union field is not supported")

	// Type errors at lowering time.
	ErrVoidPointerArithmetic = errors.New("codegen: void* arithmetic is not supported outside assignment/cast")
	ErrUnresolvedIdent       = errors.New("codegen: identifier does not resolve to any declaration in scope")

	// Unsupported constructs.
	ErrMallocRejected          = errors.New("codegen: malloc/realloc calls are rejected; use calloc or a fixed-size declaration")
	ErrCompoundAssignToPtrSubscript = errors.New("codegen: compound assignment to a struct-pointer subscript is not supported")

	// Signature errors.
	ErrArgCountMismatch = errors.New("codegen: call argument count does not match the callee's signature")

	// Unknown attribute surface (spec.md §6).
	ErrUnknownAttribute = errors.New("codegen: declaration has no body and no recognized attribute")

	// Internal invariants surfaced from lower layers are passed through
	// unwrapped; this package adds none of its own beyond the above.
)
