package classfile

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/codegen"
)

// JVM Spec §4.7.4 verification_type_info tags.
const (
	vtTop    = 0
	vtInt    = 1
	vtFloat  = 2
	vtDouble = 3
	vtLong   = 4
	vtNull   = 5
	vtObject = 7
)

// writeCodeAttribute emits the Code attribute: the method's bytecode plus
// its LineNumberTable and StackMapTable sub-attributes.
func writeCodeAttribute(w *writer, p *pool, m *codegen.Method) error {
	body := newWriter()
	body.u2(m.MaxStack)
	body.u2(m.MaxLocals)
	body.u4(uint32(len(m.Code)))
	body.raw(m.Code)
	body.u2(0) // exception_table_length: Cminor has no exception handling

	var sub [][]byte
	if len(m.LineTable) > 0 {
		sub = append(sub, encodeLineNumberTable(p, m.LineTable))
	}
	if len(m.StackFrames) > 0 {
		smt, err := encodeStackMapTable(p, m)
		if err != nil {
			return fmt.Errorf("StackMapTable: %w", err)
		}
		sub = append(sub, smt)
	}
	body.u2(len(sub))
	for _, a := range sub {
		body.raw(a)
	}

	w.u2(p.b.AddUTF8("Code"))
	w.u4(uint32(len(body.bytes())))
	w.raw(body.bytes())
	return nil
}

func encodeLineNumberTable(p *pool, lines []codebuilder.LineEntry) []byte {
	body := newWriter()
	body.u2(len(lines))
	for _, l := range lines {
		body.u2(l.PC)
		body.u2(l.Line)
	}
	return wrapAttribute(p, "LineNumberTable", body.bytes())
}

func encodeStackMapTable(p *pool, m *codegen.Method) ([]byte, error) {
	body := newWriter()
	body.u2(len(m.StackFrames))

	prevPC := -1
	prevLocalsCount := m.InitialLocals
	for _, f := range m.StackFrames {
		offsetDelta := f.PC - prevPC - 1
		if err := encodeFrame(body, p, f, offsetDelta, prevLocalsCount); err != nil {
			return nil, err
		}
		prevPC = f.PC
		prevLocalsCount = len(f.Locals)
	}

	return wrapAttribute(p, "StackMapTable", body.bytes()), nil
}

func wrapAttribute(p *pool, name string, body []byte) []byte {
	out := newWriter()
	out.u2(p.b.AddUTF8(name))
	out.u4(uint32(len(body)))
	out.raw(body)
	return out.bytes()
}

// encodeFrame writes one stack_map_frame entry in the most compact form
// the JVM Spec §4.7.4 allows for its Kind, falling back to full_frame
// whenever the delta or entry count would overflow a compact form's range
// (the synthesizer in pkg/codebuilder never targets a specific encoding,
// only the logical same/append/chop/full relationship).
func encodeFrame(body *writer, p *pool, f codebuilder.StackMapFrame, offsetDelta, prevLocalsCount int) error {
	switch f.Kind {
	case "same":
		if offsetDelta <= 63 {
			body.u1(byte(offsetDelta))
			return nil
		}
		body.u1(251)
		body.u2(offsetDelta)
		return nil

	case "same_locals_1_stack_item":
		if len(f.Stack) != 1 {
			return fmt.Errorf("same_locals_1_stack_item frame at pc %d has %d stack entries", f.PC, len(f.Stack))
		}
		if offsetDelta <= 63 {
			body.u1(byte(64 + offsetDelta))
		} else {
			body.u1(247)
			body.u2(offsetDelta)
		}
		writeVerificationType(body, p, f.Stack[0])
		return nil

	case "chop":
		if f.ChopCount < 1 || f.ChopCount > 3 {
			return encodeFullFrame(body, p, f, offsetDelta)
		}
		body.u1(byte(251 - f.ChopCount))
		body.u2(offsetDelta)
		return nil

	case "append":
		appended := len(f.Locals) - prevLocalsCount
		if appended < 1 || appended > 3 {
			return encodeFullFrame(body, p, f, offsetDelta)
		}
		body.u1(byte(251 + appended))
		body.u2(offsetDelta)
		for _, vt := range f.Locals[prevLocalsCount:] {
			writeVerificationType(body, p, vt)
		}
		return nil

	case "full":
		return encodeFullFrame(body, p, f, offsetDelta)

	default:
		return fmt.Errorf("classfile: unknown stack map frame kind %q at pc %d", f.Kind, f.PC)
	}
}

func encodeFullFrame(body *writer, p *pool, f codebuilder.StackMapFrame, offsetDelta int) error {
	body.u1(255)
	body.u2(offsetDelta)
	body.u2(len(f.Locals))
	for _, vt := range f.Locals {
		writeVerificationType(body, p, vt)
	}
	body.u2(len(f.Stack))
	for _, vt := range f.Stack {
		writeVerificationType(body, p, vt)
	}
	return nil
}

func writeVerificationType(body *writer, p *pool, vt codebuilder.VerificationType) {
	switch vt.Tag {
	case "Integer":
		body.u1(vtInt)
	case "Float":
		body.u1(vtFloat)
	case "Double":
		body.u1(vtDouble)
	case "Long":
		body.u1(vtLong)
	case "Null":
		body.u1(vtNull)
	case "Top":
		body.u1(vtTop)
	default: // "Object"
		body.u1(vtObject)
		body.u2(p.b.AddClass(vt.ClassName))
	}
}
