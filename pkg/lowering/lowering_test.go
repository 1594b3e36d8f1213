package lowering

import (
	"testing"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/constpool"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

func newTestLowering() (*Lowering, *codebuilder.Builder) {
	pool := constpool.NewBuilder()
	cb := codebuilder.NewBuilder(pool)
	return New(cb, pool, jvmtypes.NewMapper()), cb
}

var intPtrType = &cminorast.TypeSpecifier{
	Kind: cminorast.KindPointer,
	Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindInt},
}

var ucharPtrType = &cminorast.TypeSpecifier{
	Kind: cminorast.KindPointer,
	Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindChar, Unsigned: true},
}

func TestPtrCreateLeavesSingleReference(t *testing.T) {
	l, cb := newTestLowering()
	cb.AconstNull() // base
	cb.Iconst(0)    // offset
	if err := l.EmitPtrCreate(intPtrType); err != nil {
		t.Fatalf("EmitPtrCreate: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("after ptr_create expected one REFERENCE, got %+v", frame.Stack)
	}
}

func TestPtrCloneRoundTripsBaseAndOffset(t *testing.T) {
	l, cb := newTestLowering()
	cb.AconstNull()
	cb.Iconst(0)
	if err := l.EmitPtrCreate(intPtrType); err != nil {
		t.Fatalf("EmitPtrCreate: %v", err)
	}
	if err := l.EmitPtrClone(intPtrType); err != nil {
		t.Fatalf("EmitPtrClone: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("ptr_clone must leave exactly one REFERENCE, got %+v", frame.Stack)
	}
}

func TestPtrAddConsumesPtrAndIntLeavesPtr(t *testing.T) {
	l, cb := newTestLowering()
	cb.AconstNull()
	cb.Iconst(0)
	if err := l.EmitPtrCreate(intPtrType); err != nil {
		t.Fatalf("EmitPtrCreate: %v", err)
	}
	cb.Iconst(3)
	if err := l.EmitPtrAdd(intPtrType, jvmtypes.CategoryInt); err != nil {
		t.Fatalf("EmitPtrAdd: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("ptr_add must leave exactly one REFERENCE, got %+v", frame.Stack)
	}
}

func TestPtrDerefOnUnsignedCharEmitsMask(t *testing.T) {
	l, cb := newTestLowering()
	cb.AconstNull()
	cb.Iconst(0)
	if err := l.EmitPtrCreate(ucharPtrType); err != nil {
		t.Fatalf("EmitPtrCreate: %v", err)
	}
	if err := l.EmitPtrDeref(ucharPtrType); err != nil {
		t.Fatalf("EmitPtrDeref: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryInt {
		t.Fatalf("ptr_deref on unsigned char must leave one INT, got %+v", frame.Stack)
	}
	code := cb.Code()
	if len(code) == 0 || code[len(code)-1] != 0x7e /* iand */ {
		t.Fatalf("expected the unsigned mask's iand as the final opcode, got %#x", code[len(code)-1])
	}
}

func TestPtrDiffLeavesSingleInt(t *testing.T) {
	l, cb := newTestLowering()
	cb.AconstNull()
	cb.Iconst(0)
	if err := l.EmitPtrCreate(intPtrType); err != nil {
		t.Fatalf("EmitPtrCreate p: %v", err)
	}
	cb.AconstNull()
	cb.Iconst(4)
	if err := l.EmitPtrCreate(intPtrType); err != nil {
		t.Fatalf("EmitPtrCreate q: %v", err)
	}
	if err := l.EmitPtrDiff(intPtrType); err != nil {
		t.Fatalf("EmitPtrDiff: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryInt {
		t.Fatalf("ptr_diff must leave one INT, got %+v", frame.Stack)
	}
}

func TestArrayDeepCopyOnPrimitiveElementLeavesReference(t *testing.T) {
	l, cb := newTestLowering()
	arrType := &cminorast.TypeSpecifier{
		Kind: cminorast.KindArray,
		Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindInt},
		Len:  -1,
	}
	cb.AconstNull()
	if err := l.EmitArrayDeepCopy(arrType); err != nil {
		t.Fatalf("EmitArrayDeepCopy: %v", err)
	}
	if err := cb.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("array_deep_copy must leave one REFERENCE, got %+v", frame.Stack)
	}
}

func TestStructDeepCopyOnEmptyStructLeavesReference(t *testing.T) {
	l, cb := newTestLowering()
	structType := &cminorast.TypeSpecifier{Kind: cminorast.KindStruct, Name: "Point"}
	cb.AconstNull()
	if err := l.EmitStructDeepCopy(structType); err != nil {
		t.Fatalf("EmitStructDeepCopy: %v", err)
	}
	if err := cb.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("struct_deep_copy must leave one REFERENCE, got %+v", frame.Stack)
	}
}

func TestDefaultInitializeScalarKinds(t *testing.T) {
	cases := []struct {
		name string
		t    *cminorast.TypeSpecifier
		want jvmtypes.ValueCategory
	}{
		{"int", &cminorast.TypeSpecifier{Kind: cminorast.KindInt}, jvmtypes.CategoryInt},
		{"long", &cminorast.TypeSpecifier{Kind: cminorast.KindLong}, jvmtypes.CategoryLong},
		{"float", &cminorast.TypeSpecifier{Kind: cminorast.KindFloat}, jvmtypes.CategoryFloat},
		{"double", &cminorast.TypeSpecifier{Kind: cminorast.KindDouble}, jvmtypes.CategoryDouble},
		{"pointer", intPtrType, jvmtypes.CategoryReference},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l, cb := newTestLowering()
			if err := l.DefaultInitialize(c.t); err != nil {
				t.Fatalf("DefaultInitialize(%s): %v", c.name, err)
			}
			frame := cb.Frame()
			if len(frame.Stack) != 1 || frame.Stack[0] != c.want {
				t.Fatalf("DefaultInitialize(%s) left frame %+v, want one %s", c.name, frame.Stack, c.want)
			}
		})
	}
}

func TestEmitBoxArgLeavesReferenceForScalars(t *testing.T) {
	cases := []jvmtypes.ValueCategory{jvmtypes.CategoryInt, jvmtypes.CategoryLong, jvmtypes.CategoryFloat, jvmtypes.CategoryDouble}
	for _, cat := range cases {
		t.Run(string(cat), func(t *testing.T) {
			l, cb := newTestLowering()
			switch cat {
			case jvmtypes.CategoryInt:
				cb.Iconst(1)
			case jvmtypes.CategoryLong:
				cb.Lconst(1)
			case jvmtypes.CategoryFloat:
				cb.Fconst(1)
			case jvmtypes.CategoryDouble:
				cb.Dconst(1)
			}
			if err := l.EmitBoxArg(cat); err != nil {
				t.Fatalf("EmitBoxArg(%s): %v", cat, err)
			}
			frame := cb.Frame()
			if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
				t.Fatalf("EmitBoxArg(%s) left frame %+v, want one REFERENCE", cat, frame.Stack)
			}
		})
	}
}

func TestEmitPackVarargsLeavesReference(t *testing.T) {
	l, cb := newTestLowering()
	cb.Iconst(7)
	cb.Iconst(8)
	cb.Iconst(9)
	if err := l.EmitPackVarargs([]jvmtypes.ValueCategory{jvmtypes.CategoryInt, jvmtypes.CategoryInt, jvmtypes.CategoryInt}); err != nil {
		t.Fatalf("EmitPackVarargs: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("EmitPackVarargs left frame %+v, want one REFERENCE", frame.Stack)
	}
}

func TestVaStartThenVaArgThenVaEnd(t *testing.T) {
	l, cb := newTestLowering()
	cb.SetParam(0, jvmtypes.CategoryReference) // synthetic __varargs slot
	apSlot := cb.AllocateLocal(jvmtypes.CategoryReference)

	if err := l.EmitVaStart(0, apSlot); err != nil {
		t.Fatalf("EmitVaStart: %v", err)
	}
	if err := l.EmitVaArg(apSlot, &cminorast.TypeSpecifier{Kind: cminorast.KindInt}); err != nil {
		t.Fatalf("EmitVaArg: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryInt {
		t.Fatalf("va_arg(ap, int) left frame %+v, want one INT", frame.Stack)
	}
	if err := l.EmitVaEnd(); err != nil {
		t.Fatalf("EmitVaEnd: %v", err)
	}
	if len(cb.Frame().Stack) != 0 {
		t.Fatalf("va_end must leave the stack empty, got %+v", cb.Frame().Stack)
	}
}

func TestEmitCallocPrimitiveLeavesReference(t *testing.T) {
	l, cb := newTestLowering()
	cb.Iconst(10)
	if err := l.EmitCalloc(&cminorast.TypeSpecifier{Kind: cminorast.KindInt}); err != nil {
		t.Fatalf("EmitCalloc: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("EmitCalloc(int) left frame %+v, want one REFERENCE", frame.Stack)
	}
}

func TestEmitCallocStructLeavesReference(t *testing.T) {
	l, cb := newTestLowering()
	cb.Iconst(4)
	if err := l.EmitCalloc(&cminorast.TypeSpecifier{Kind: cminorast.KindStruct, Name: "Point"}); err != nil {
		t.Fatalf("EmitCalloc(struct): %v", err)
	}
	if err := cb.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryReference {
		t.Fatalf("EmitCalloc(struct) left frame %+v, want one REFERENCE", frame.Stack)
	}
}

func TestUnsignedBinaryCompareReturnsInt(t *testing.T) {
	l, cb := newTestLowering()
	cb.Iconst(10)
	cb.Iconst(3)
	if err := l.EmitUnsignedBinary(UnsignedCmpInt, jvmtypes.CategoryInt); err != nil {
		t.Fatalf("EmitUnsignedBinary: %v", err)
	}
	frame := cb.Frame()
	if len(frame.Stack) != 1 || frame.Stack[0] != jvmtypes.CategoryInt {
		t.Fatalf("compareUnsigned must leave one INT, got %+v", frame.Stack)
	}
}
