package lowering

import (
	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/constpool"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// wrapperBaseField and wrapperOffsetField name the two fields every
// runtime pointer-wrapper class carries (spec.md §3's "Pointer
// representation"). The wrapper classes themselves are external assets
// (spec.md §1); this package only ever calls their default constructor
// and reads/writes these two fields.
const (
	wrapperBaseField   = "base"
	wrapperOffsetField = "offset"
)

// UnsignedHelperClass is the runtime static-method helper named in
// spec.md §4.4 ("the platform's unsigned helpers"); original_source calls
// these as plain static functions, so here they become invokestatic
// targets against one well-known class.
const UnsignedHelperClass = "__Unsigned"

// Lowering emits C4 routines against one method's code builder and one
// class's constant pool / type mapper. A fresh Lowering is constructed
// per method, mirroring Builder's own per-method lifetime.
type Lowering struct {
	cb     *codebuilder.Builder
	pool   *constpool.Builder
	mapper *jvmtypes.Mapper
}

// New returns a Lowering bound to cb (the method's code builder), pool
// (the class's constant pool builder), and mapper (the compilation unit's
// descriptor cache).
func New(cb *codebuilder.Builder, pool *constpool.Builder, mapper *jvmtypes.Mapper) *Lowering {
	return &Lowering{cb: cb, pool: pool, mapper: mapper}
}

func (l *Lowering) pointerParts(t *cminorast.TypeSpecifier) (kind jvmtypes.PointerRuntimeKind, wrapperClass, baseDesc string, err error) {
	kind, err = jvmtypes.PointerRuntimeKindOf(t)
	if err != nil {
		return "", "", "", err
	}
	wrapperClass = jvmtypes.WrapperClassName(kind)
	baseDesc, err = jvmtypes.PointerBaseArrayDescriptor(t)
	if err != nil {
		return "", "", "", err
	}
	return kind, wrapperClass, baseDesc, nil
}

// buildWrapperFromBaseOffset consumes [base, offset] (base on the
// bottom, per ptr_create's contract) and leaves a constructed [ptr].
// Three independent values (the fresh reference plus the two field
// values) are briefly live at once, so this goes through scratch locals
// rather than a dup/swap stack shuffle.
func (l *Lowering) buildWrapperFromBaseOffset(wrapperClass, baseDesc string) error {
	tmpOffset := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpOffset, jvmtypes.CategoryInt); err != nil {
		return err
	}
	tmpBase := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpBase, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.New(wrapperClass)
	if err := l.cb.DupValue(); err != nil {
		return err
	}
	if err := l.cb.Invoke(codebuilder.InvokeSpecial, wrapperClass, "<init>", "()V", nil, ""); err != nil {
		return err
	}

	if err := l.cb.DupValue(); err != nil {
		return err
	}
	l.cb.Load(tmpBase, jvmtypes.CategoryReference)
	if err := l.cb.Putfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}

	if err := l.cb.DupValue(); err != nil {
		return err
	}
	l.cb.Load(tmpOffset, jvmtypes.CategoryInt)
	if err := l.cb.Putfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	return nil
}

// extractBaseOffset consumes a single [ptr] already on the stack (the
// only live value) and leaves [base, offset]. The single-source,
// two-field shape is exactly what dup_value/swap were built for
// (spec.md §4.3).
func (l *Lowering) extractBaseOffset(wrapperClass, baseDesc string) error {
	if err := l.cb.DupValue(); err != nil {
		return err
	}
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	if err := l.cb.Swap(); err != nil {
		return err
	}
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	return nil
}

func narrowArrayKindFor(t *cminorast.TypeSpecifier) codebuilder.NarrowArrayKind {
	switch t.Kind {
	case cminorast.KindChar, cminorast.KindBool:
		return codebuilder.NarrowByteOrBool
	case cminorast.KindShort:
		return codebuilder.NarrowShort
	default:
		return codebuilder.NarrowNone
	}
}
