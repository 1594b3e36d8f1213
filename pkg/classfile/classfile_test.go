package classfile

import (
	"encoding/binary"
	"testing"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/codegen"
	"cminor.dev/jvmgen/pkg/constpool"
)

func intType() *cminorast.TypeSpecifier {
	return &cminorast.TypeSpecifier{Kind: cminorast.KindInt}
}

func minimalClass() *codegen.Class {
	cpBuilder := constpool.NewBuilder()
	return &codegen.Class{
		Name:  "Example",
		Super: "java/lang/Object",
		Pool:  cpBuilder,
		Globals: []cminorast.Declaration{
			{Name: "counter", Type: intType()},
		},
		Methods: []codegen.Method{
			{
				Name:       "main",
				Descriptor: "([Ljava/lang/String;)V",
				IsStatic:   true,
				Code:       []byte{0xb1}, // return
				MaxStack:   0,
				MaxLocals:  1,
			},
		},
	}
}

func TestWriteHeaderLayout(t *testing.T) {
	out, err := Write(minimalClass())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(out) < 10 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	if got := binary.BigEndian.Uint32(out[0:4]); got != magic {
		t.Fatalf("magic = %#x, want %#x", got, magic)
	}
	if got := binary.BigEndian.Uint16(out[4:6]); got != minorVersion {
		t.Fatalf("minor version = %d, want %d", got, minorVersion)
	}
	if got := binary.BigEndian.Uint16(out[6:8]); got != majorVersion {
		t.Fatalf("major version = %d, want %d", got, majorVersion)
	}
}

func TestWriteFieldAndMethodCounts(t *testing.T) {
	cls := minimalClass()
	out, err := Write(cls)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Re-walk the stream far enough to reach fields_count: magic(4) + minor(2)
	// + major(2) + constant_pool_count(2) + constant pool entries + access
	// flags(2) + this_class(2) + super_class(2) + interfaces_count(2).
	cp, err := buildConstantPool(cls)
	if err != nil {
		t.Fatalf("buildConstantPool: %v", err)
	}
	if err := internAll(cp, cls); err != nil {
		t.Fatalf("internAll: %v", err)
	}
	poolW := newWriter()
	if err := cp.encode(poolW); err != nil {
		t.Fatalf("encode: %v", err)
	}

	offset := 4 + 2 + 2 + len(poolW.bytes()) + 2 + 2 + 2 + 2
	fieldsCount := binary.BigEndian.Uint16(out[offset : offset+2])
	if int(fieldsCount) != len(cls.Globals) {
		t.Fatalf("fields_count = %d, want %d", fieldsCount, len(cls.Globals))
	}
}

func TestSlotsForWideConstants(t *testing.T) {
	if slotsFor(constpool.KindLong) != 2 {
		t.Fatalf("Long constants must reserve 2 pool slots")
	}
	if slotsFor(constpool.KindDouble) != 2 {
		t.Fatalf("Double constants must reserve 2 pool slots")
	}
	if slotsFor(constpool.KindInteger) != 1 {
		t.Fatalf("Integer constants must reserve 1 pool slot")
	}
}

func TestInternAllCoversUncalledMethodAndAttributeNames(t *testing.T) {
	cls := minimalClass()
	cp, err := buildConstantPool(cls)
	if err != nil {
		t.Fatalf("buildConstantPool: %v", err)
	}
	if err := internAll(cp, cls); err != nil {
		t.Fatalf("internAll: %v", err)
	}

	found := map[string]bool{}
	for _, e := range cp.b.Entries() {
		if e.Kind == constpool.KindUtf8 {
			found[e.Utf8] = true
		}
	}
	for _, want := range []string{"Code", "main", "([Ljava/lang/String;)V", "counter", "I"} {
		if !found[want] {
			t.Errorf("expected UTF8 constant %q to be interned, entries: %+v", want, found)
		}
	}
}

func TestEncodeFrameCompactSameFrame(t *testing.T) {
	w := newWriter()
	cp := &pool{b: constpool.NewBuilder()}
	if err := encodeFrame(w, cp, codebuilder.StackMapFrame{PC: 10, Kind: "same"}, 10, 0); err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	out := w.bytes()
	if len(out) != 1 || out[0] != 10 {
		t.Fatalf("compact same frame = %v, want [10]", out)
	}
}

func TestEncodeFrameSameExtendedBeyondCompactRange(t *testing.T) {
	w := newWriter()
	cp := &pool{b: constpool.NewBuilder()}
	if err := encodeFrame(w, cp, codebuilder.StackMapFrame{PC: 200, Kind: "same"}, 200, 0); err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	out := w.bytes()
	if len(out) != 3 || out[0] != 251 {
		t.Fatalf("extended same frame = %v, want frame_type 251 + u2 delta", out)
	}
	if got := binary.BigEndian.Uint16(out[1:3]); got != 200 {
		t.Fatalf("offset_delta = %d, want 200", got)
	}
}

func TestEncodeFrameAppendFallsBackToFullWhenTooWide(t *testing.T) {
	w := newWriter()
	cp := &pool{b: constpool.NewBuilder()}
	locals := make([]codebuilder.VerificationType, 5)
	for i := range locals {
		locals[i] = codebuilder.VerificationType{Tag: "Integer"}
	}
	if err := encodeFrame(w, cp, codebuilder.StackMapFrame{PC: 5, Kind: "append", Locals: locals}, 5, 0); err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	out := w.bytes()
	if out[0] != 255 {
		t.Fatalf("frame_type = %d, want 255 (full_frame) when appending 5 locals exceeds the compact range", out[0])
	}
}
