package codegen

import (
	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/constpool"
)

// Method is one compiled function's output: everything pkg/classfile
// needs to write a method_info's Code/LineNumberTable/StackMapTable
// attributes, plus the descriptor needed for the method_info header
// itself.
type Method struct {
	Name        string
	Descriptor  string
	IsStatic    bool
	Code        []byte
	MaxStack    int
	MaxLocals   int
	LineTable   []codebuilder.LineEntry
	StackFrames []codebuilder.StackMapFrame

	// InitialLocals is the number of used local slots at method entry
	// (params plus any heap-lift wrapper slots installed before the
	// first statement), the baseline StackFrames's append/chop deltas
	// in StackFrames[0] are computed against.
	InitialLocals int
}

// Class is one compiled translation unit's output: the shared constant
// pool plus every method generated against it. pkg/classfile consumes
// this directly.
type Class struct {
	Name    string
	Super   string
	Pool    *constpool.Builder
	Methods []Method

	// Globals lists every file-scope declaration, carried through so
	// pkg/classfile can emit the static field_info entries that
	// loadIdentRaw/storeIdent's Getstatic/Putstatic instructions assume
	// already exist on the class.
	Globals []cminorast.Declaration

	// WrapperKindsUsed records which runtime pointer-wrapper classes this
	// class's bytecode referenced, so the external artifact step can
	// select which of the external __*Ptr class files to bundle
	// (spec.md §6, "Persisted state").
	WrapperKindsUsed map[string]bool
}
