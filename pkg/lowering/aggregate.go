package lowering

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// arraycopyOwner/Name/Desc name the JVM intrinsic used to deep-copy
// primitive and enum array elements in one shot (spec.md §5.2:
// "arrays of scalar element type are copied via the platform's bulk
// array-copy intrinsic").
const (
	arraycopyOwner = "java/lang/System"
	arraycopyName  = "arraycopy"
	arraycopyDesc  = "(Ljava/lang/Object;ILjava/lang/Object;II)V"
)

var arraycopyArgCats = []jvmtypes.ValueCategory{
	jvmtypes.CategoryReference, jvmtypes.CategoryInt,
	jvmtypes.CategoryReference, jvmtypes.CategoryInt,
	jvmtypes.CategoryInt,
}

func isScalarElement(t *cminorast.TypeSpecifier) bool {
	switch t.Kind {
	case cminorast.KindBool, cminorast.KindChar, cminorast.KindShort, cminorast.KindInt,
		cminorast.KindLong, cminorast.KindFloat, cminorast.KindDouble, cminorast.KindEnum:
		return true
	default:
		return false
	}
}

// EmitArrayDeepCopy implements array_deep_copy(T[]): [src] -> [dst], a
// fresh array of the same length with every element independently copied
// (struct elements recursively, scalar/enum elements via arraycopy).
// Non-nil invariant: a nil src produces a nil dst, matching C's "copying a
// null array pointer is a no-op" expectation (spec.md §5.2 edge case).
func (l *Lowering) EmitArrayDeepCopy(t *cminorast.TypeSpecifier) error {
	if t.Kind != cminorast.KindArray {
		return fmt.Errorf("lowering: EmitArrayDeepCopy on non-array type %q: %w", t.Kind, ErrNotAnAggregate)
	}

	elemDesc, err := jvmtypes.Descriptor(t.Elem)
	if err != nil {
		return err
	}
	arrayDesc := "[" + elemDesc
	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}

	tmpSrc := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpSrc, jvmtypes.CategoryReference); err != nil {
		return err
	}

	nullLabel := l.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := l.cb.CreateLabel(codebuilder.LabelPlain)

	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	if err := l.cb.JumpIf(codebuilder.CondNull, nullLabel); err != nil {
		return err
	}

	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	if err := l.cb.Arraylength(); err != nil {
		return err
	}
	tmpLen := l.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := l.cb.Store(tmpLen, jvmtypes.CategoryInt); err != nil {
		return err
	}

	if isScalarElement(t.Elem) {
		if err := l.emitScalarArrayCopy(tmpSrc, tmpLen, arrayDesc, elemCat); err != nil {
			return err
		}
	} else {
		if err := l.emitAggregateArrayCopy(t.Elem, tmpSrc, tmpLen, arrayDesc, elemDesc); err != nil {
			return err
		}
	}

	if err := l.cb.Jump(endLabel); err != nil {
		return err
	}

	if err := l.cb.PlaceLabel(nullLabel); err != nil {
		return err
	}
	l.cb.AconstNull()

	if err := l.cb.PlaceLabel(endLabel); err != nil {
		return err
	}
	return nil
}

func (l *Lowering) emitScalarArrayCopy(tmpSrc, tmpLen int, arrayDesc string, elemCat jvmtypes.ValueCategory) error {
	l.cb.Load(tmpLen, jvmtypes.CategoryInt)
	if err := l.cb.Newarray(newarrayTypeCodeFor(elemCat, arrayDesc)); err != nil {
		return err
	}
	tmpDst := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpDst, jvmtypes.CategoryReference); err != nil {
		return err
	}

	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	l.cb.Iconst(0)
	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	l.cb.Iconst(0)
	l.cb.Load(tmpLen, jvmtypes.CategoryInt)
	if err := l.cb.Invoke(codebuilder.InvokeStatic, arraycopyOwner, arraycopyName, arraycopyDesc, arraycopyArgCats, ""); err != nil {
		return err
	}

	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	return nil
}

// newarrayTypeCodeFor maps an element category/descriptor back to the
// newarray atype operand. Narrow descriptors ('B','Z','S','C') all report
// CategoryInt, so the descriptor itself breaks the tie.
func newarrayTypeCodeFor(cat jvmtypes.ValueCategory, arrayDesc string) int {
	switch arrayDesc[1:] {
	case "Z":
		return codebuilder.AtBoolean
	case "B":
		return codebuilder.AtByte
	case "C":
		return codebuilder.AtChar
	case "S":
		return codebuilder.AtShort
	case "F":
		return codebuilder.AtFloat
	case "D":
		return codebuilder.AtDouble
	case "J":
		return codebuilder.AtLong
	default:
		return codebuilder.AtInt
	}
}

// emitAggregateArrayCopy handles struct-element (and nested-array-element)
// arrays: a fresh array of the same length, populated by an explicit
// counted loop that recursively deep-copies each element. anewarray's
// element class is the struct's own class for struct arrays, or the
// nested array's class for array-of-array (spec.md §5.2 nested-array
// note). Nested arrays are copied recursively to their full depth; no
// depth limit is checked here.
func (l *Lowering) emitAggregateArrayCopy(elemType *cminorast.TypeSpecifier, tmpSrc, tmpLen int, arrayDesc, elemDesc string) error {
	elemClass := internalNameFromRefDescriptor(elemDesc)

	l.cb.Load(tmpLen, jvmtypes.CategoryInt)
	if err := l.cb.Anewarray(elemClass); err != nil {
		return err
	}
	tmpDst := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpDst, jvmtypes.CategoryReference); err != nil {
		return err
	}

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
	l.cb.Load(tmpLen, jvmtypes.CategoryInt)
	if err := l.cb.JumpIf(codebuilder.CondICmpGe, loopEnd); err != nil {
		return err
	}

	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	l.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	l.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	if err := l.cb.ArrayLoad(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
		return err
	}

	if elemType.Kind == cminorast.KindArray {
		if err := l.EmitArrayDeepCopy(elemType); err != nil {
			return err
		}
	} else {
		if err := l.EmitStructDeepCopy(elemType); err != nil {
			return err
		}
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

	if err := l.cb.PlaceLabel(loopEnd); err != nil {
		return err
	}
	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	return nil
}

func internalNameFromRefDescriptor(desc string) string {
	if len(desc) > 0 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}

// EmitStructDeepCopy implements struct_deep_copy(T): [src] -> [dst], a
// fresh instance of t's class with every field independently copied
// (plain scalar fields by value, pointer fields via ptr_clone, nested
// struct/array fields recursively). A nil src again yields a nil dst.
func (l *Lowering) EmitStructDeepCopy(t *cminorast.TypeSpecifier) error {
	if t.Kind != cminorast.KindStruct && t.Kind != cminorast.KindUnion {
		return fmt.Errorf("lowering: EmitStructDeepCopy on non-struct type %q: %w", t.Kind, ErrNotAnAggregate)
	}

	tmpSrc := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpSrc, jvmtypes.CategoryReference); err != nil {
		return err
	}

	nullLabel := l.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := l.cb.CreateLabel(codebuilder.LabelPlain)

	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	if err := l.cb.JumpIf(codebuilder.CondNull, nullLabel); err != nil {
		return err
	}

	l.cb.New(t.Name)
	if err := l.cb.DupValue(); err != nil {
		return err
	}
	if err := l.cb.Invoke(codebuilder.InvokeSpecial, t.Name, "<init>", "()V", nil, ""); err != nil {
		return err
	}
	tmpDst := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpDst, jvmtypes.CategoryReference); err != nil {
		return err
	}

	for _, field := range t.Fields.Entries() {
		if err := l.copyStructField(t.Name, field, tmpSrc, tmpDst); err != nil {
			return err
		}
	}

	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	if err := l.cb.Jump(endLabel); err != nil {
		return err
	}

	if err := l.cb.PlaceLabel(nullLabel); err != nil {
		return err
	}
	l.cb.AconstNull()

	if err := l.cb.PlaceLabel(endLabel); err != nil {
		return err
	}
	return nil
}

func (l *Lowering) copyStructField(className string, field *cminorast.Declaration, tmpSrc, tmpDst int) error {
	desc, err := jvmtypes.Descriptor(field.Type)
	if err != nil {
		return err
	}
	cat, err := jvmtypes.Category(field.Type)
	if err != nil {
		return err
	}

	l.cb.Load(tmpDst, jvmtypes.CategoryReference)
	l.cb.Load(tmpSrc, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(className, field.Name, desc, cat); err != nil {
		return err
	}

	switch field.Type.Kind {
	case cminorast.KindStruct, cminorast.KindUnion:
		if err := l.EmitStructDeepCopy(field.Type); err != nil {
			return err
		}
	case cminorast.KindArray:
		if err := l.EmitArrayDeepCopy(field.Type); err != nil {
			return err
		}
	case cminorast.KindPointer:
		if err := l.EmitPtrClone(field.Type); err != nil {
			return err
		}
	}

	return l.cb.Putfield(className, field.Name, desc, cat)
}

// DefaultInitialize pushes t's C default value (zero/false/null, or a
// fully zeroed struct/array instance) onto the stack, matching calloc's
// "zero every byte" contract lifted to the JVM's typed-storage model
// (spec.md §5.3).
func (l *Lowering) DefaultInitialize(t *cminorast.TypeSpecifier) error {
	switch t.Kind {
	case cminorast.KindBool, cminorast.KindChar, cminorast.KindShort, cminorast.KindInt, cminorast.KindEnum:
		l.cb.Iconst(0)
		return nil
	case cminorast.KindLong:
		l.cb.Lconst(0)
		return nil
	case cminorast.KindFloat:
		l.cb.Fconst(0)
		return nil
	case cminorast.KindDouble:
		l.cb.Dconst(0)
		return nil
	case cminorast.KindPointer:
		l.cb.AconstNull()
		return nil
	case cminorast.KindStruct, cminorast.KindUnion:
		return l.emitZeroedStruct(t)
	case cminorast.KindArray:
		return l.emitZeroedArray(t)
	default:
		return fmt.Errorf("lowering: DefaultInitialize on unsupported kind %q: %w", t.Kind, ErrUnsupportedElement)
	}
}

func (l *Lowering) emitZeroedStruct(t *cminorast.TypeSpecifier) error {
	l.cb.New(t.Name)
	if err := l.cb.DupValue(); err != nil {
		return err
	}
	// The default constructor already zero-initializes every field
	// (each field declaration's own default-value assignment mirrors
	// this same routine, recursively, at class-init time), so no
	// further per-field work is needed here.
	return l.cb.Invoke(codebuilder.InvokeSpecial, t.Name, "<init>", "()V", nil, "")
}

func (l *Lowering) emitZeroedArray(t *cminorast.TypeSpecifier) error {
	if t.Len < 0 {
		return fmt.Errorf("lowering: DefaultInitialize on an array of unknown length: %w", ErrUnsupportedElement)
	}
	elemDesc, err := jvmtypes.Descriptor(t.Elem)
	if err != nil {
		return err
	}
	elemCat, err := jvmtypes.Category(t.Elem)
	if err != nil {
		return err
	}

	if isScalarElement(t.Elem) {
		l.cb.Iconst(int32(t.Len))
		return l.cb.Newarray(newarrayTypeCodeFor(elemCat, "["+elemDesc))
	}

	elemClass := internalNameFromRefDescriptor(elemDesc)
	l.cb.Iconst(int32(t.Len))
	if err := l.cb.Anewarray(elemClass); err != nil {
		return err
	}
	if t.Elem.Kind != cminorast.KindStruct && t.Elem.Kind != cminorast.KindUnion && t.Elem.Kind != cminorast.KindArray {
		return nil // pointer elements: anewarray already leaves every slot null
	}

	tmpArr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}
	for i := 0; i < t.Len; i++ {
		l.cb.Load(tmpArr, jvmtypes.CategoryReference)
		l.cb.Iconst(int32(i))
		if err := l.DefaultInitialize(t.Elem); err != nil {
			return err
		}
		if err := l.cb.ArrayStore(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
			return err
		}
	}
	l.cb.Load(tmpArr, jvmtypes.CategoryReference)
	return nil
}
