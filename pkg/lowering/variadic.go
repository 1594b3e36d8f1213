package lowering

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

var boxWrapperClass = map[jvmtypes.ValueCategory]string{
	jvmtypes.CategoryInt:    "java/lang/Integer",
	jvmtypes.CategoryLong:   "java/lang/Long",
	jvmtypes.CategoryFloat:  "java/lang/Float",
	jvmtypes.CategoryDouble: "java/lang/Double",
}

var boxValueOfDescriptor = map[jvmtypes.ValueCategory]string{
	jvmtypes.CategoryInt:    "(I)Ljava/lang/Integer;",
	jvmtypes.CategoryLong:   "(J)Ljava/lang/Long;",
	jvmtypes.CategoryFloat:  "(F)Ljava/lang/Float;",
	jvmtypes.CategoryDouble: "(D)Ljava/lang/Double;",
}

var unboxValueDescriptor = map[jvmtypes.ValueCategory]struct {
	method string
	desc   string
}{
	jvmtypes.CategoryInt:    {"intValue", "()I"},
	jvmtypes.CategoryLong:   {"longValue", "()J"},
	jvmtypes.CategoryFloat:  {"floatValue", "()F"},
	jvmtypes.CategoryDouble: {"doubleValue", "()D"},
}

// EmitBoxArg boxes a single scalar value for storage in a boxed-varargs
// Object[] slot (spec.md §4.5: "int -> Integer, long -> Long, float ->
// Float, double -> Double, references unchanged"). A reference-category
// value needs no boxing and this is a no-op for it.
func (l *Lowering) EmitBoxArg(cat jvmtypes.ValueCategory) error {
	if cat == jvmtypes.CategoryReference {
		return nil
	}
	class, ok := boxWrapperClass[cat]
	if !ok {
		return fmt.Errorf("lowering: no boxed wrapper for category %q", cat)
	}
	desc := boxValueOfDescriptor[cat]
	return l.cb.Invoke(codebuilder.InvokeStatic, class, "valueOf", desc, []jvmtypes.ValueCategory{cat}, jvmtypes.CategoryReference)
}

// EmitPackVarargs packs argCats (already on the stack, in call order)
// into a fresh Object[] whose reference becomes the tail positional
// argument (spec.md §4.5). Each argument is consumed via a temp local so
// boxing and array-store can happen in source order without juggling the
// whole tail on the operand stack at once.
func (l *Lowering) EmitPackVarargs(argCats []jvmtypes.ValueCategory) error {
	tmps := make([]int, len(argCats))
	for i := len(argCats) - 1; i >= 0; i-- {
		tmps[i] = l.cb.AllocateLocal(argCats[i])
		if err := l.cb.Store(tmps[i], argCats[i]); err != nil {
			return err
		}
	}

	l.cb.Iconst(int32(len(argCats)))
	if err := l.cb.Anewarray("java/lang/Object"); err != nil {
		return err
	}
	tmpArr := l.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := l.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	for i, cat := range argCats {
		l.cb.Load(tmpArr, jvmtypes.CategoryReference)
		l.cb.Iconst(int32(i))
		l.cb.Load(tmps[i], cat)
		if err := l.EmitBoxArg(cat); err != nil {
			return err
		}
		if err := l.cb.ArrayStore(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
			return err
		}
	}

	l.cb.Load(tmpArr, jvmtypes.CategoryReference)
	return nil
}

// EmitVaStart implements va_start(ap) (spec.md §4.5): builds a fresh
// __objectPtr over the method's synthetic varargs slot (offset 0) and
// stores it into ap's local slot.
func (l *Lowering) EmitVaStart(varargsSlot, apSlot int) error {
	l.cb.Load(varargsSlot, jvmtypes.CategoryReference)
	l.cb.Iconst(0)
	if err := l.EmitPtrCreateByKind(jvmtypes.PtrObject); err != nil {
		return err
	}
	return l.cb.Store(apSlot, jvmtypes.CategoryReference)
}

// EmitVaArg implements va_arg(ap, T): fetches ap.base[ap.offset], unboxes
// or casts to T, then increments ap.offset in place (spec.md §4.5).
func (l *Lowering) EmitVaArg(apSlot int, t *cminorast.TypeSpecifier) error {
	wrapperClass := jvmtypes.WrapperClassName(jvmtypes.PtrObject)
	baseDesc := "[Ljava/lang/Object;"

	l.cb.Load(apSlot, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperBaseField, baseDesc, jvmtypes.CategoryReference); err != nil {
		return err
	}
	l.cb.Load(apSlot, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	if err := l.cb.ArrayLoad(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
		return err
	}

	cat, err := jvmtypes.Category(t)
	if err != nil {
		return err
	}
	if err := l.unboxOrCast(t, cat); err != nil {
		return err
	}

	l.cb.Load(apSlot, jvmtypes.CategoryReference)
	l.cb.Load(apSlot, jvmtypes.CategoryReference)
	if err := l.cb.Getfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt); err != nil {
		return err
	}
	l.cb.Iconst(1)
	if err := l.cb.BinaryArith(codebuilder.ArithAdd, jvmtypes.CategoryInt); err != nil {
		return err
	}
	return l.cb.Putfield(wrapperClass, wrapperOffsetField, "I", jvmtypes.CategoryInt)
}

func (l *Lowering) unboxOrCast(t *cminorast.TypeSpecifier, cat jvmtypes.ValueCategory) error {
	if unbox, ok := unboxValueDescriptor[cat]; ok {
		class := boxWrapperClass[cat]
		if err := l.cb.Checkcast(class); err != nil {
			return err
		}
		return l.cb.Invoke(codebuilder.InvokeVirtual, class, unbox.method, unbox.desc, nil, cat)
	}

	className, err := jvmtypes.InternalClassName(t)
	if err != nil {
		return err
	}
	return l.cb.Checkcast(className)
}

// EmitVaEnd implements va_end(ap): a bare pop (spec.md §4.5).
func (l *Lowering) EmitVaEnd() error {
	return l.cb.PopValue()
}
