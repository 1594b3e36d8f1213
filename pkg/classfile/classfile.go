// Package classfile is the external serializer downstream of C1-C5: it
// renders a codegen.Class (a shared constant pool plus a list of compiled
// methods) into the actual bytes of a JVM .class file, per JVM Spec §4.
//
// Nothing here resolves symbols or makes codegen decisions; every index,
// descriptor, and frame has already been computed by pkg/codegen,
// pkg/constpool, and pkg/codebuilder. This package's only job is the
// binary layout: magic, versions, the constant pool table, access flags,
// and the method_info/Code/LineNumberTable/StackMapTable attributes.
//
// Grounded on pkg/hack's role in the teacher (the final emission stage
// downstream of codegen, writing a compiled program out byte by byte) and
// on original_source/code_output.c, the C implementation's equally thin
// combined code+constant-pool output struct.
package classfile

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/codegen"
)

const (
	magic = 0xCAFEBABE

	// Major version 52 corresponds to Java SE 8, the oldest JVM release
	// with StackMapTable attributes mandatory for every class file (the
	// flag this package always emits) rather than the reader-assisted
	// fallback older verifiers accepted.
	majorVersion = 52
	minorVersion = 0

	accPublic = 0x0001
	accSuper  = 0x0020
	accStatic = 0x0008
)

// Write renders cls into the bytes of a single .class file.
func Write(cls *codegen.Class) ([]byte, error) {
	w := newWriter()
	cp, err := buildConstantPool(cls)
	if err != nil {
		return nil, fmt.Errorf("classfile: building constant pool: %w", err)
	}
	if err := internAll(cp, cls); err != nil {
		return nil, fmt.Errorf("classfile: interning constants: %w", err)
	}

	w.u4(magic)
	w.u2(minorVersion)
	w.u2(majorVersion)

	if err := cp.encode(w); err != nil {
		return nil, fmt.Errorf("classfile: encoding constant pool: %w", err)
	}

	w.u2(accPublic | accSuper)
	w.u2(cp.classIndex)
	w.u2(cp.superIndex)

	w.u2(0) // interfaces_count: Cminor classes never implement an interface

	w.u2(len(cls.Globals))
	for i := range cls.Globals {
		if err := writeField(w, cp, &cls.Globals[i]); err != nil {
			return nil, fmt.Errorf("classfile: field %q: %w", cls.Globals[i].Name, err)
		}
	}

	w.u2(len(cls.Methods))
	for i := range cls.Methods {
		if err := writeMethod(w, cp, &cls.Methods[i]); err != nil {
			return nil, fmt.Errorf("classfile: method %q: %w", cls.Methods[i].Name, err)
		}
	}

	w.u2(0) // attributes_count: no class-level attributes (no SourceFile, no annotations)

	return w.bytes(), nil
}
