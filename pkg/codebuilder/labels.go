package codebuilder

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// LabelKind hints how a label is used, mostly to aid StackMapTable
// synthesis and debugging; it carries no behavioral weight beyond that.
type LabelKind string

const (
	LabelPlain      LabelKind = "plain"
	LabelLoopHeader LabelKind = "loop_header"
	LabelJumpOnly   LabelKind = "jump_only"
)

// Label is a (possibly forward) jump target: a tentative pc, a placed
// flag, a saved frame snapshot, and a kind hint. Created before or at
// placement; placed at most once (spec.md §3).
type Label struct {
	id         int
	Kind       LabelKind
	placed     bool
	pc         int
	frame      Frame
	frameSaved bool
}

// Placed reports whether Place has been called on l.
func (l *Label) Placed() bool { return l.placed }

// PC returns l's resolved program counter; only valid once Placed().
func (l *Label) PC() int { return l.pc }

type relocKind int

const (
	reloc16 relocKind = iota // 2-byte signed offset, relative to the opcode's own pc (if<cond>, if_icmp, goto)
	relocGotoW                // 4-byte signed offset (goto_w)
)

type pendingJump struct {
	label     *Label
	opcodePC  int  // pc of the branch opcode itself (offsets are relative to this)
	operandAt int  // byte offset in code[] where the offset operand begins
	kind      relocKind
	opcode    byte // the branch opcode emitted (opGoto or one of the if<cond> family)
}

// invertedCond maps a conditional-branch opcode to the opcode that branches
// on the negated condition, used to synthesize a goto_w-reachable wide
// conditional branch: `if<!cond> skip; goto_w target; skip:`.
var invertedCond = map[byte]byte{
	opIfeq: opIfne, opIfne: opIfeq,
	opIflt: opIfge, opIfge: opIflt,
	opIfgt: opIfle, opIfle: opIfgt,
	opIfICmpEq: opIfICmpNe, opIfICmpNe: opIfICmpEq,
	opIfICmpLt: opIfICmpGe, opIfICmpGe: opIfICmpLt,
	opIfICmpGt: opIfICmpLe, opIfICmpLe: opIfICmpGt,
	opIfACmpEq: opIfACmpNe, opIfACmpNe: opIfACmpEq,
	opIfNull: opIfNonNull, opIfNonNull: opIfNull,
}

// CreateLabel allocates a fresh, unplaced label.
func (b *Builder) CreateLabel(kind LabelKind) *Label {
	b.labelSeq++
	l := &Label{id: b.labelSeq, Kind: kind}
	b.labels = append(b.labels, l)
	return l
}

// saveFrameIfNeeded snapshots the builder's current frame onto l the first
// time any jump or fallthrough reaches it; later jumps no longer overwrite
// it, matching spec.md's "snapshot ... if not yet saved".
func (b *Builder) saveFrameIfNeeded(l *Label) {
	if l.frameSaved {
		return
	}
	l.frame = b.frame.Clone()
	l.frameSaved = true
}

// PresetLabelFrame saves frame onto l before it is ever jumped to or
// placed, overriding the ambient ("whatever's live right now") snapshot
// saveFrameIfNeeded would otherwise take. Needed for dispatch-table switch
// lowering (pkg/codegen's genSwitchDispatch): every case/default label is
// placed in body order with nothing having jumped to it yet (the
// tableswitch/lookupswitch itself is built afterward), so without a preset
// each label would snapshot whatever locals happen to be live after the
// previous case's body instead of the switch's actual entry frame, and a
// real JVM verifier would reject the resulting StackMapTable.
func (b *Builder) PresetLabelFrame(l *Label, frame Frame) {
	l.frame = frame.Clone()
	l.frameSaved = true
}

// PlaceLabel fixes l's pc to the current instruction-stream position,
// merges any previously saved frame with the live one, and revives `alive`
// if the label had a saved frame — the mechanism by which a forward goto
// or break resurrects code after unconditional control transfer.
func (b *Builder) PlaceLabel(l *Label) error {
	if l.placed {
		return ErrDeadLabelPlacement
	}
	l.pc = b.pc
	l.placed = true

	if l.frameSaved {
		if b.alive {
			merged, err := mergeFrames(l.frame, b.frame)
			if err != nil {
				return err
			}
			l.frame = merged
			b.frame = merged.Clone()
		} else {
			b.frame = l.frame.Clone()
		}
		b.alive = true
	} else if b.alive {
		b.saveFrameIfNeeded(l)
	}

	return nil
}

// mergeFrames implements the Javac-style frame merge used when two
// predecessors (e.g. if/then and if/else, or a loop back-edge) reach the
// same label: locals/stack must agree in shape.
func mergeFrames(a, b Frame) (Frame, error) {
	if len(a.Stack) != len(b.Stack) {
		return Frame{}, ErrFrameMergeConflict
	}
	for i := range a.Stack {
		if a.Stack[i] != b.Stack[i] {
			return Frame{}, ErrFrameMergeConflict
		}
	}

	n := len(a.Locals)
	if len(b.Locals) < n {
		n = len(b.Locals)
	}
	stackCopy := make([]jvmtypes.ValueCategory, len(a.Stack))
	copy(stackCopy, a.Stack)
	merged := Frame{Stack: stackCopy, Locals: make([]SlotEntry, n)}
	for i := 0; i < n; i++ {
		la, lb := a.Locals[i], b.Locals[i]
		switch {
		case !la.Used || !lb.Used || la.Category != lb.Category || la.Top != lb.Top:
			merged.Locals[i] = SlotEntry{} // unused past this point; a local only one branch initialized is not guaranteed-live
		case la.ClassName != lb.ClassName:
			// both predecessors agree on category but not on concrete
			// class (e.g. two differently-typed heap-lift wrappers
			// reusing the same reused slot): widen to Object rather than
			// reporting either branch's specific class.
			merged.Locals[i] = SlotEntry{Category: la.Category, Used: true, Top: la.Top}
		default:
			merged.Locals[i] = la
		}
	}
	return merged, nil
}

// Jump emits an unconditional goto to l and clears `alive` (an
// unconditional transfer leaves no fallthrough successor).
func (b *Builder) Jump(l *Label) error {
	b.saveFrameIfNeeded(l)
	b.emitGotoLike(opGoto, l)
	b.alive = false
	return nil
}

// JumpCond names a conditional-branch opcode family for JumpIf.
type JumpCond string

const (
	CondIfEq JumpCond = "ifeq"
	CondIfNe JumpCond = "ifne"
	CondIfLt JumpCond = "iflt"
	CondIfGe JumpCond = "ifge"
	CondIfGt JumpCond = "ifgt"
	CondIfLe JumpCond = "ifle"

	CondICmpEq JumpCond = "if_icmpeq"
	CondICmpNe JumpCond = "if_icmpne"
	CondICmpLt JumpCond = "if_icmplt"
	CondICmpGe JumpCond = "if_icmpge"
	CondICmpGt JumpCond = "if_icmpgt"
	CondICmpLe JumpCond = "if_icmple"

	CondACmpEq JumpCond = "if_acmpeq"
	CondACmpNe JumpCond = "if_acmpne"

	CondNull    JumpCond = "ifnull"
	CondNonNull JumpCond = "ifnonnull"
)

var condOpcode = map[JumpCond]byte{
	CondIfEq: opIfeq, CondIfNe: opIfne, CondIfLt: opIflt, CondIfGe: opIfge, CondIfGt: opIfgt, CondIfLe: opIfle,
	CondICmpEq: opIfICmpEq, CondICmpNe: opIfICmpNe, CondICmpLt: opIfICmpLt, CondICmpGe: opIfICmpGe, CondICmpGt: opIfICmpGt, CondICmpLe: opIfICmpLe,
	CondACmpEq: opIfACmpEq, CondACmpNe: opIfACmpNe,
	CondNull: opIfNull, CondNonNull: opIfNonNull,
}

// JumpIf emits the conditional-branch opcode for cond, consuming the
// operand(s) its family requires off the stack, and leaves `alive` set
// (the fallthrough path survives a conditional branch).
func (b *Builder) JumpIf(cond JumpCond, l *Label) error {
	op, ok := condOpcode[cond]
	if !ok {
		return ErrUnplacedLabelAtDispatch
	}

	switch cond {
	case CondICmpEq, CondICmpNe, CondICmpLt, CondICmpGe, CondICmpGt, CondICmpLe:
		if err := b.popExact(jvmtypes.CategoryInt); err != nil {
			return err
		}
		if err := b.popExact(jvmtypes.CategoryInt); err != nil {
			return err
		}
	case CondACmpEq, CondACmpNe:
		if err := b.popExact(jvmtypes.CategoryReference); err != nil {
			return err
		}
		if err := b.popExact(jvmtypes.CategoryReference); err != nil {
			return err
		}
	case CondNull, CondNonNull:
		if err := b.popExact(jvmtypes.CategoryReference); err != nil {
			return err
		}
	default: // ifeq/ifne/iflt/ifge/ifgt/ifle: a single int on the stack
		if err := b.popExact(jvmtypes.CategoryInt); err != nil {
			return err
		}
	}

	b.saveFrameIfNeeded(l)
	b.emit8(op)
	b.addReloc16(l, op)
	return nil
}

func (b *Builder) emitGotoLike(op byte, l *Label) {
	b.emit8(op)
	b.addReloc16(l, op)
}

func (b *Builder) addReloc16(l *Label, op byte) {
	opcodePC := b.pc - 1
	operandAt := len(b.code)
	b.emitU16(0) // placeholder, patched by ResolveJumps
	b.pending = append(b.pending, pendingJump{label: l, opcodePC: opcodePC, operandAt: operandAt, kind: reloc16, opcode: op})
}

// ResolveJumps back-patches every pending relocation now that all labels
// are placed. An offset that doesn't fit a signed 16-bit operand is
// rewritten in place: a plain goto becomes goto_w; a conditional branch
// becomes its negated-condition short form branching around a goto_w
// (the JVM has no wide conditional branch). Widening one branch can shift
// code far enough to push another branch out of 16-bit range, so this
// runs to a fixed point before the final encode/verify pass.
func (b *Builder) ResolveJumps() error {
	for _, pj := range b.pending {
		if !pj.label.placed {
			return ErrUnplacedLabelAtDispatch
		}
	}

	for pass := 0; pass <= len(b.pending); pass++ {
		widenedAny := false
		for i := range b.pending {
			if b.pending[i].kind == relocGotoW {
				continue // already wide; a 32-bit offset always suffices
			}
			offset := b.pending[i].label.pc - b.pending[i].opcodePC
			if offset >= -32768 && offset <= 32767 {
				continue
			}
			if err := b.widenJump(i); err != nil {
				return err
			}
			widenedAny = true
		}
		if !widenedAny {
			break
		}
	}

	for _, pj := range b.pending {
		offset := pj.label.pc - pj.opcodePC
		switch pj.kind {
		case reloc16:
			if offset < -32768 || offset > 32767 {
				return ErrBranchOffsetTooWide
			}
			b.patchU16At(pj.operandAt, uint16(int16(offset)))
		case relocGotoW:
			b.patchU32At(pj.operandAt, uint32(int32(offset)))
		}
	}
	return nil
}

// widenJump rewrites the branch at b.pending[idx] into a wide-reachable
// form and shifts every pc/offset recorded after the splice point.
func (b *Builder) widenJump(idx int) error {
	pj := &b.pending[idx]
	oldStart := pj.opcodePC
	const oldLen = 3 // opcode + 2-byte offset, true of every reloc16 site

	var newBytes []byte
	if pj.opcode == opGoto {
		newBytes = []byte{opGotoW, 0, 0, 0, 0}
		pj.kind = relocGotoW
		pj.operandAt = oldStart + 1
	} else {
		invOp, ok := invertedCond[pj.opcode]
		if !ok {
			return fmt.Errorf("codebuilder: no inverted form for branch opcode 0x%x", pj.opcode)
		}
		// if<!cond> +8 (skip to after goto_w); goto_w target
		newBytes = []byte{invOp, 0, 8, opGotoW, 0, 0, 0, 0}
		pj.kind = relocGotoW
		pj.opcodePC = oldStart + 3
		pj.operandAt = oldStart + 3 + 1
	}

	delta := len(newBytes) - oldLen
	b.code = append(b.code[:oldStart:oldStart], append(newBytes, b.code[oldStart+oldLen:]...)...)
	b.pc += delta

	for i := range b.pending {
		if i == idx {
			continue
		}
		if b.pending[i].opcodePC > oldStart {
			b.pending[i].opcodePC += delta
			b.pending[i].operandAt += delta
		}
	}
	for _, l := range b.labels {
		if l.placed && l.pc > oldStart {
			l.pc += delta
		}
	}
	for i := range b.lines {
		if b.lines[i].PC > oldStart {
			b.lines[i].PC += delta
		}
	}
	return nil
}

func (b *Builder) patchU16At(at int, v uint16) {
	b.code[at] = byte(v >> 8)
	b.code[at+1] = byte(v)
}

func (b *Builder) patchU32At(at int, v uint32) {
	b.code[at] = byte(v >> 24)
	b.code[at+1] = byte(v >> 16)
	b.code[at+2] = byte(v >> 8)
	b.code[at+3] = byte(v)
}
