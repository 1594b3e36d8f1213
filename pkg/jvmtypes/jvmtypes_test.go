package jvmtypes

import (
	"testing"

	"cminor.dev/jvmgen/pkg/cminorast"
)

func TestDescriptorPrimitives(t *testing.T) {
	cases := []struct {
		kind cminorast.Kind
		want string
	}{
		{cminorast.KindVoid, "V"},
		{cminorast.KindBool, "I"},
		{cminorast.KindChar, "I"},
		{cminorast.KindShort, "I"},
		{cminorast.KindInt, "I"},
		{cminorast.KindEnum, "I"},
		{cminorast.KindLong, "J"},
		{cminorast.KindFloat, "F"},
		{cminorast.KindDouble, "D"},
	}
	for _, tc := range cases {
		got, err := Descriptor(&cminorast.TypeSpecifier{Kind: tc.kind})
		if err != nil {
			t.Errorf("Descriptor(%s): unexpected error %v", tc.kind, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Descriptor(%s) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestDescriptorVoidPointerIsPlainObject(t *testing.T) {
	ptr := &cminorast.TypeSpecifier{Kind: cminorast.KindPointer, Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindVoid}}
	got, err := Descriptor(ptr)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if got != "Ljava/lang/Object;" {
		t.Fatalf("Descriptor(void*) = %q, want Ljava/lang/Object;", got)
	}
}

func TestDescriptorIntPointerUsesWrapperClass(t *testing.T) {
	ptr := &cminorast.TypeSpecifier{Kind: cminorast.KindPointer, Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindInt}}
	got, err := Descriptor(ptr)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if got != "L__intPtr;" {
		t.Fatalf("Descriptor(int*) = %q, want L__intPtr;", got)
	}
}

func TestDescriptorArrayOfArray(t *testing.T) {
	arr := &cminorast.TypeSpecifier{
		Kind: cminorast.KindArray,
		Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindArray, Elem: &cminorast.TypeSpecifier{Kind: cminorast.KindInt}, Len: 4},
		Len:  3,
	}
	got, err := Descriptor(arr)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if got != "[[I" {
		t.Fatalf("Descriptor(int[3][4]) = %q, want [[I", got)
	}
}

func TestDescriptorStructUsesTagName(t *testing.T) {
	st := &cminorast.TypeSpecifier{Kind: cminorast.KindStruct, Name: "Point"}
	got, err := Descriptor(st)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if got != "LPoint;" {
		t.Fatalf("Descriptor(struct Point) = %q, want LPoint;", got)
	}
}

func TestDescriptorAnonymousStructFails(t *testing.T) {
	st := &cminorast.TypeSpecifier{Kind: cminorast.KindStruct}
	if _, err := Descriptor(st); err == nil {
		t.Fatalf("expected an error for an anonymous struct")
	}
}

func TestInternalClassNameStripsObjectDescriptorWrapping(t *testing.T) {
	st := &cminorast.TypeSpecifier{Kind: cminorast.KindStruct, Name: "Point"}
	got, err := InternalClassName(st)
	if err != nil {
		t.Fatalf("InternalClassName: %v", err)
	}
	if got != "Point" {
		t.Fatalf("InternalClassName(struct Point) = %q, want Point", got)
	}
}

func TestInternalClassNamePrimitiveIsUnwrapped(t *testing.T) {
	got, err := InternalClassName(&cminorast.TypeSpecifier{Kind: cminorast.KindInt})
	if err != nil {
		t.Fatalf("InternalClassName: %v", err)
	}
	if got != "I" {
		t.Fatalf("InternalClassName(int) = %q, want I", got)
	}
}

func TestCategoryWideTypes(t *testing.T) {
	long, err := Category(&cminorast.TypeSpecifier{Kind: cminorast.KindLong})
	if err != nil || long != CategoryLong {
		t.Fatalf("Category(long) = (%v, %v), want CategoryLong", long, err)
	}
	dbl, err := Category(&cminorast.TypeSpecifier{Kind: cminorast.KindDouble})
	if err != nil || dbl != CategoryDouble {
		t.Fatalf("Category(double) = (%v, %v), want CategoryDouble", dbl, err)
	}
	if !CategoryLong.IsWide() || !CategoryDouble.IsWide() {
		t.Fatalf("Long and Double must report IsWide() true")
	}
	if CategoryInt.IsWide() || CategoryReference.IsWide() {
		t.Fatalf("Int and Reference must report IsWide() false")
	}
}

func TestPointerRuntimeKindOfRejectsNonPointer(t *testing.T) {
	if _, err := PointerRuntimeKindOf(&cminorast.TypeSpecifier{Kind: cminorast.KindInt}); err == nil {
		t.Fatalf("expected an error for a non-pointer type")
	}
}

func TestWrapperClassNameFormat(t *testing.T) {
	if got := WrapperClassName(PtrDouble); got != "__doublePtr" {
		t.Fatalf("WrapperClassName(PtrDouble) = %q, want __doublePtr", got)
	}
}

func TestMethodDescriptorCachesByIdentity(t *testing.T) {
	m := NewMapper()
	fn := &cminorast.FunctionDeclaration{
		Name: "add",
		Params: []cminorast.Declaration{
			{Name: "a", Type: &cminorast.TypeSpecifier{Kind: cminorast.KindInt}},
			{Name: "b", Type: &cminorast.TypeSpecifier{Kind: cminorast.KindInt}},
		},
		Return: &cminorast.TypeSpecifier{Kind: cminorast.KindInt},
	}
	first, err := m.MethodDescriptor(fn)
	if err != nil {
		t.Fatalf("MethodDescriptor: %v", err)
	}
	if first != "(II)I" {
		t.Fatalf("MethodDescriptor = %q, want (II)I", first)
	}
	second, err := m.MethodDescriptor(fn)
	if err != nil {
		t.Fatalf("MethodDescriptor (cached): %v", err)
	}
	if second != first {
		t.Fatalf("cached MethodDescriptor = %q, want %q", second, first)
	}
}
