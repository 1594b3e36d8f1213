package lowering

import (
	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// EmitPtrCreate implements ptr_create(T*): [base, offset] -> [ptr].
func (l *Lowering) EmitPtrCreate(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	return l.buildWrapperFromBaseOffset(wrapperClass, baseDesc)
}

// EmitPtrCreateByKind is ptr_create_by_type_index from
// original_source/codebuilder_ptr.h: the wrapper kind is already resolved
// (e.g. by an attribute-driven intrinsic path) rather than derived from a
// TypeSpecifier.
func (l *Lowering) EmitPtrCreateByKind(kind jvmtypes.PointerRuntimeKind) error {
	wrapperClass := jvmtypes.WrapperClassName(kind)
	baseDesc := "[Ljava/lang/Object;"
	if kind != jvmtypes.PtrObject {
		baseDesc = "[" + primitiveArrayElementDescriptor(kind)
	}
	return l.buildWrapperFromBaseOffset(wrapperClass, baseDesc)
}

func primitiveArrayElementDescriptor(kind jvmtypes.PointerRuntimeKind) string {
	switch kind {
	case jvmtypes.PtrChar:
		return "B"
	case jvmtypes.PtrBool:
		return "Z"
	case jvmtypes.PtrShort:
		return "S"
	case jvmtypes.PtrInt:
		return "I"
	case jvmtypes.PtrLong:
		return "J"
	case jvmtypes.PtrFloat:
		return "F"
	case jvmtypes.PtrDouble:
		return "D"
	default:
		return "Ljava/lang/Object;"
	}
}

// EmitPtrAdd implements ptr_add(T*): [ptr, delta] -> [new_ptr]. deltaCat
// tells the routine whether a long-to-int narrowing conversion is needed
// first (spec.md §4.4).
func (l *Lowering) EmitPtrAdd(t *cminorast.TypeSpecifier, deltaCat jvmtypes.ValueCategory) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}

	if deltaCat == jvmtypes.CategoryLong {
		if err := l.cb.Convert(codebuilder.ConvL2I); err != nil {
			return err
		}
	}

	tmpDelta := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpDelta, jvmtypes.CategoryInt); err != nil {
		return err
	}
	tmpPtr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpPtr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpDelta, jvmtypes.CategoryInt)
	if err := l.cb.BinaryArith(codebuilder.ArithAdd, jvmtypes.CategoryInt); err != nil {
		return err
	}

	return l.buildWrapperFromBaseOffset(wrapperClass, baseDesc)
}

// EmitPtrDiff implements ptr_diff(T*): [p, q] -> [offset_p - offset_q].
// Bases are assumed equal; the JVM-level subtraction inherits isub's
// wraparound on overflow (spec.md §9, documented at the user boundary).
func (l *Lowering) EmitPtrDiff(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, _, err := l.pointerParts(t)
	if err != nil {
		return err
	}

	tmpQ := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpQ, jvmtypes.CategoryReference); err != nil {
		return err
	}
	tmpP := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpP, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpP, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpQ, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	return l.cb.BinaryArith(codebuilder.ArithSub, jvmtypes.CategoryInt)
}

// EmitPtrGetBase implements ptr_get_base(T*): [ptr] -> [base].
func (l *Lowering) EmitPtrGetBase(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	return l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference)
}

// EmitPtrGetOffset implements ptr_get_offset(T*): [ptr] -> [offset].
func (l *Lowering) EmitPtrGetOffset(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, _, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	return l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt)
}

// EmitPtrClone implements ptr_clone(T*): [ptr] -> [new_ptr]. Needed
// because C pointer assignment must not let two C pointer variables alias
// the same wrapper object (spec.md §4.4).
func (l *Lowering) EmitPtrClone(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	if err := l.extractBaseOffset(wrapperClass, baseDesc); err != nil {
		return err
	}
	return l.buildWrapperFromBaseOffset(wrapperClass, baseDesc)
}

// EmitPtrDeref implements ptr_deref(T*): [ptr] -> [elem], inserting the
// unsigned mask and/or checkcast the element type requires.
func (l *Lowering) EmitPtrDeref(t *cminorast.TypeSpecifier) error {
	kind, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	if err := l.extractBaseOffset(wrapperClass, baseDesc); err != nil {
		return err
	}

	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}
	if err := l.cb.ArrayLoad(elemCat, narrowArrayKindFor(t.Elem)); err != nil {
		return err
	}

	if kind == jvmtypes.PtrObject {
		if err := l.checkcastElem(t.Elem); err != nil {
			return err
		}
	}
	return l.maskUnsignedNarrow(t.Elem)
}

// checkcastElem inserts the mandatory checkcast after a generic aaload
// from an Object[]-backed pointer base (spec.md §4.4: "a correctness
// requirement, not an optimization").
func (l *Lowering) checkcastElem(elem *cminorast.TypeSpecifier) error {
	if elem.Kind == cminorast.KindVoid {
		return nil // Object is already the right static type
	}
	className, err := jvmtypes.InternalClassName(elem)
	if err != nil {
		return err
	}
	return l.cb.Checkcast(className)
}

// maskUnsignedNarrow masks a freshly loaded unsigned char/short value so
// its high bits read as zero-extended rather than sign-extended.
func (l *Lowering) maskUnsignedNarrow(t *cminorast.TypeSpecifier) error {
	if !t.Unsigned {
		return nil
	}
	switch t.Kind {
	case cminorast.KindChar:
		l.cb.Iconst(0xFF)
	case cminorast.KindShort:
		l.cb.Iconst(0xFFFF)
	default:
		return nil
	}
	return l.cb.BinaryArith(codebuilder.ArithAnd, jvmtypes.CategoryInt)
}

// EmitPtrStore implements ptr_store(T*): [ptr, value] -> [].
func (l *Lowering) EmitPtrStore(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}

	tmpValue := l.cb.AllocateLocal(elemCat)
	if err := l.cb.Store(tmpValue, elemCat); err != nil {
		return err
	}
	tmpPtr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpPtr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpValue, elemCat)
	return l.cb.ArrayStore(elemCat, narrowArrayKindFor(t.Elem))
}

// EmitPtrSubscript implements ptr_subscript(T*): [ptr, index] -> [elem].
func (l *Lowering) EmitPtrSubscript(t *cminorast.TypeSpecifier) error {
	kind, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}

	tmpIndex := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpIndex, jvmtypes.CategoryInt); err != nil {
		return err
	}
	tmpPtr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpPtr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpIndex, jvmtypes.CategoryInt)
	if err := l.cb.BinaryArith(codebuilder.ArithAdd, jvmtypes.CategoryInt); err != nil {
		return err
	}

	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}
	if err := l.cb.ArrayLoad(elemCat, narrowArrayKindFor(t.Elem)); err != nil {
		return err
	}
	if kind == jvmtypes.PtrObject {
		if err := l.checkcastElem(t.Elem); err != nil {
			return err
		}
	}
	return l.maskUnsignedNarrow(t.Elem)
}

// EmitPtrStoreSubscript implements ptr_store_subscript(T*):
// [ptr, index, value] -> [].
func (l *Lowering) EmitPtrStoreSubscript(t *cminorast.TypeSpecifier) error {
	_, wrapperClass, baseDesc, err := l.pointerParts(t)
	if err != nil {
		return err
	}
	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}

	tmpValue := l.cb.AllocateLocal(elemCat)
	if err := l.cb.Store(tmpValue, elemCat); err != nil {
		return err
	}
	tmpIndex := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpIndex, jvmtypes.CategoryInt); err != nil {
		return err
	}
	tmpPtr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpPtr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	l.cb.Load(tmpPtr, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpIndex, jvmtypes.CategoryInt)
	if err := l.cb.BinaryArith(codebuilder.ArithAdd, jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Load(tmpValue, elemCat)
	return l.cb.ArrayStore(elemCat, narrowArrayKindFor(t.Elem))
}
