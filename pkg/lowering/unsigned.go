package lowering

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// UnsignedOp names one of the __Unsigned helper's static methods. The
// helper class itself is an external runtime asset (spec.md §4.4, "the
// platform's unsigned helpers"); this package only ever calls it.
type UnsignedOp string

const (
	UnsignedDivInt  UnsignedOp = "divideUnsigned"
	UnsignedRemInt  UnsignedOp = "remainderUnsigned"
	UnsignedCmpInt  UnsignedOp = "compareUnsigned"
	UnsignedDivLong UnsignedOp = "divideUnsignedLong"
	UnsignedRemLong UnsignedOp = "remainderUnsignedLong"
	UnsignedCmpLong UnsignedOp = "compareUnsignedLong"
)

var unsignedOpDescriptor = map[UnsignedOp]string{
	UnsignedDivInt:  "(II)I",
	UnsignedRemInt:  "(II)I",
	UnsignedCmpInt:  "(II)I",
	UnsignedDivLong: "(JJ)J",
	UnsignedRemLong: "(JJ)J",
	UnsignedCmpLong: "(JJ)I",
}

// EmitUnsignedBinary invokes the __Unsigned helper method for op,
// consuming two values of cat and pushing one (cat for div/rem, INT for
// compare-then-sign per spec.md §4.4's unsigned comparison note).
func (l *Lowering) EmitUnsignedBinary(op UnsignedOp, cat jvmtypes.ValueCategory) error {
	desc, ok := unsignedOpDescriptor[op]
	if !ok {
		return fmt.Errorf("lowering: unknown unsigned helper op %q", op)
	}
	retCat := cat
	if op == UnsignedCmpInt || op == UnsignedCmpLong {
		retCat = jvmtypes.CategoryInt
	}
	argCats := []jvmtypes.ValueCategory{cat, cat}
	return l.cb.Invoke(codebuilder.InvokeStatic, UnsignedHelperClass, string(op), desc, argCats, retCat)
}

// MaskUnsignedAfterLoad masks a freshly loaded value so unsigned
// char/short read as zero-extended rather than sign-extended (spec.md
// §4.4: "after any load or array-element access, mask with 0xFF/0xFFFF").
// Exported for pkg/codegen's plain-variable-load path; pkg/lowering's own
// pointer/array routines call the private maskUnsignedNarrow directly.
func (l *Lowering) MaskUnsignedAfterLoad(t *cminorast.TypeSpecifier) error {
	return l.maskUnsignedNarrow(t)
}

// EmitUnsignedWiden implements unsigned int -> unsigned long widening:
// sign-extend via i2l, then mask to 32 bits so the sign-extended high
// word reads as zero (spec.md §4.4).
func (l *Lowering) EmitUnsignedWiden() error {
	if err := l.cb.Convert(codebuilder.ConvI2L); err != nil {
		return err
	}
	l.cb.Lconst(0xFFFFFFFF)
	return l.cb.BinaryArith(codebuilder.ArithAnd, jvmtypes.CategoryLong)
}
