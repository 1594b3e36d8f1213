package lowering

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// EmitCalloc implements calloc(n, sizeof(T)) expansion (spec.md §4.5):
// [n] -> [ptr]. Three distinct initialization paths depending on what T
// is (only the struct path runs a per-element loop), matched against original_source/codegenvisitor_expr_values.c's own
// three-way split on the sizeof argument's type.
//
// n is expected already on the stack as an INT (the call site validates
// the sizeof(T) argument statically and never emits it).
func (l *Lowering) EmitCalloc(t *cminorast.TypeSpecifier) error {
	switch t.Kind {
	case cminorast.KindStruct, cminorast.KindUnion:
		return l.emitCallocStruct(t)
	case cminorast.KindPointer:
		return l.emitCallocPointer(t)
	default:
		return l.emitCallocPrimitive(t)
	}
}

// emitCallocStruct: calloc(n, sizeof(StructT)) -> an array of n fresh
// StructT instances, wrapped in __objectPtr.
func (l *Lowering) emitCallocStruct(t *cminorast.TypeSpecifier) error {
	tmpN := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpN, jvmtypes.CategoryInt); err != nil {
		return err
	}

	l.cb.Load(tmpN, jvmtypes.CategoryInt)
	if err := l.cb.Anewarray(t.Name); err != nil {
		return err
	}
	tmpArr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	if err := l.emitCountedInitLoop(tmpArr, tmpN, func() error {
		return l.emitZeroedStruct(t)
	}); err != nil {
		return err
	}

	return l.wrapCallocArray(tmpArr, jvmtypes.PtrObject)
}

// emitCallocPointer: calloc(n, sizeof(T*)) -> an Object[n] whose slots
// are all null (no wrapper objects are built), wrapped in __objectPtr.
func (l *Lowering) emitCallocPointer(t *cminorast.TypeSpecifier) error {
	tmpN := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpN, jvmtypes.CategoryInt); err != nil {
		return err
	}

	l.cb.Load(tmpN, jvmtypes.CategoryInt)
	if err := l.cb.Anewarray("java/lang/Object"); err != nil {
		return err
	}
	tmpArr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	// anewarray already leaves every slot null, matching a null pointer
	// wrapper's absence; no per-slot loop is needed.

	return l.wrapCallocArray(tmpArr, jvmtypes.PtrObject)
}

// emitCallocPrimitive: calloc(n, sizeof(scalarT)) -> a primitive array
// of n zero elements, wrapped in the matching primitive pointer kind.
func (l *Lowering) emitCallocPrimitive(t *cminorast.TypeSpecifier) error {
	if !isScalarElement(t) {
		return fmt.Errorf("lowering: EmitCalloc on unsupported element kind %q: %w", t.Kind, ErrUnsupportedElement)
	}

	kind, err := jvmtypes.PointerRuntimeKindOf(&cminorast.TypeSpecifier{Kind: cminorast.KindPointer, Elem: t})
	if err != nil {
		return err
	}
	elemCat, err := jvmtypes.Category(t)
	if err != nil {
		return err
	}
	elemDesc, err := jvmtypes.Descriptor(t)
	if err != nil {
		return err
	}

	tmpN := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpN, jvmtypes.CategoryInt); err != nil {
		return err
	}

	l.cb.Load(tmpN, jvmtypes.CategoryInt)
	if err := l.cb.Newarray(newarrayTypeCodeFor(elemCat, "["+elemDesc)); err != nil {
		return err
	}
	tmpArr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	// newarray already zero-fills every primitive slot (spec.md §5.3's
	// calloc contract falls out of the JVM's own array-creation guarantee
	// here, with no explicit loop needed).

	return l.wrapCallocArray(tmpArr, kind)
}

// emitCountedInitLoop runs init() once per index in [0, n), storing its
// single pushed value into arr[index]. init must consume nothing and
// leave exactly one REFERENCE on the stack.
func (l *Lowering) emitCountedInitLoop(tmpArr, tmpN int, init func() error) error {
	tmpIdx := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	l.cb.Iconst(0)
	if err := l.cb.Store(tmpIdx, jvmtypes.CategoryInt); err != nil {
		return err
	}

	loopHeader := l.cb.CreateLabel(codebuilder.LabelLoopHeader)
	loopEnd := l.cb.CreateLabel(codebuilder.LabelPlain)

	if err := l.cb.PlaceLabel(loopHeader); err != nil {
		return err
	}
	l.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	l.cb.Load(tmpN, jvmtypes.CategoryInt)
	if err := l.cb.JumpIf(codebuilder.CondICmpGe, loopEnd); err != nil {
		return err
	}

	l.cb.Load(tmpArr, jvmtypes.CategoryReference)
	l.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	if err := init(); err != nil {
		return err
	}
	if err := l.cb.ArrayStore(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
		return err
	}

	l.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	l.cb.Iconst(1)
	if err := l.cb.BinaryArith(codebuilder.ArithAdd, jvmtypes.CategoryInt); err != nil {
		return err
	}
	if err := l.cb.Store(tmpIdx, jvmtypes.CategoryInt); err != nil {
		return err
	}
	if err := l.cb.Jump(loopHeader); err != nil {
		return err
	}

	return l.cb.PlaceLabel(loopEnd)
}

// wrapCallocArray wraps the freshly built array (offset 0) into the
// kind-appropriate pointer wrapper, leaving [ptr].
func (l *Lowering) wrapCallocArray(tmpArr int, kind jvmtypes.PointerRuntimeKind) error {
	wrapperClass := jvmtypes.WrapperClassName(kind)
	baseDesc := "[Ljava/lang/Object;"
	if kind != jvmtypes.PtrObject {
		baseDesc = "[" + primitiveArrayElementDescriptor(kind)
	}

	l.cb.Load(tmpArr, jvmtypes.CategoryReference)
	l.cb.Iconst(0)
	return l.buildWrapperFromBaseOffset(wrapperClass, baseDesc)
}
