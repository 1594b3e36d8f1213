package codebuilder

import (
	"testing"

	"cminor.dev/jvmgen/pkg/constpool"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

func newTestBuilder() *Builder {
	return NewBuilder(constpool.NewBuilder())
}

func TestIconstSelectsCompactForm(t *testing.T) {
	cases := []struct {
		name string
		v    int32
		want int // expected emitted byte count
	}{
		{"iconst_0", 0, 1},
		{"iconst_5", 5, 1},
		{"bipush", 100, 2},
		{"sipush", 1000, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := newTestBuilder()
			b.Iconst(c.v)
			if len(b.code) != c.want {
				t.Fatalf("Iconst(%d) emitted %d bytes, want %d", c.v, len(b.code), c.want)
			}
			if len(b.frame.Stack) != 1 || b.frame.Stack[0] != jvmtypes.CategoryInt {
				t.Fatalf("Iconst(%d) left frame %+v, want one INT", c.v, b.frame.Stack)
			}
		})
	}
}

func TestStackUnderflowOnBarePop(t *testing.T) {
	b := newTestBuilder()
	if err := b.PopValue(); err != ErrStackUnderflow {
		t.Fatalf("PopValue on empty stack: got %v, want ErrStackUnderflow", err)
	}
}

func TestWideValueUsesDup2(t *testing.T) {
	b := newTestBuilder()
	b.Lconst(5)
	if err := b.DupValue(); err != nil {
		t.Fatalf("DupValue: %v", err)
	}
	if b.code[len(b.code)-1] != opDup2 {
		t.Fatalf("DupValue on a LONG emitted opcode %#x, want dup2", b.code[len(b.code)-1])
	}
	if len(b.frame.Stack) != 2 {
		t.Fatalf("after dup2 expected 2 stack entries, got %d", len(b.frame.Stack))
	}
}

func TestLabelRevivesAliveOnPlacement(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)

	if err := b.Jump(l); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if b.Alive() {
		t.Fatalf("alive should be false right after an unconditional jump")
	}

	// Dead code between the jump and the label: still traversed (per
	// spec.md's dead-code rule) but alive stays false.
	if b.Alive() {
		t.Fatalf("dead code should not be alive")
	}

	if err := b.PlaceLabel(l); err != nil {
		t.Fatalf("PlaceLabel: %v", err)
	}
	if !b.Alive() {
		t.Fatalf("placing a label with a saved frame must revive alive")
	}
}

func TestPlaceLabelTwiceFails(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)
	if err := b.PlaceLabel(l); err != nil {
		t.Fatalf("first PlaceLabel: %v", err)
	}
	if err := b.PlaceLabel(l); err != ErrDeadLabelPlacement {
		t.Fatalf("second PlaceLabel: got %v, want ErrDeadLabelPlacement", err)
	}
}

func TestResolveJumpsRejectsUnplacedLabel(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)
	if err := b.Jump(l); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if err := b.ResolveJumps(); err != ErrUnplacedLabelAtDispatch {
		t.Fatalf("ResolveJumps with unplaced target: got %v, want ErrUnplacedLabelAtDispatch", err)
	}
}

func TestResolveJumpsPatchesForwardOffset(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)
	if err := b.Jump(l); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	b.Iconst(1) // dead, but still emits a label target region (no-op here)
	if err := b.PlaceLabel(l); err != nil {
		t.Fatalf("PlaceLabel: %v", err)
	}
	b.ReturnVoid()

	if err := b.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}
	// goto opcode at offset 0, 2-byte operand at offset 1-2
	gotOffset := int16(uint16(b.code[1])<<8 | uint16(b.code[2]))
	if int(gotOffset) != l.pc {
		t.Fatalf("patched goto offset = %d, want %d", gotOffset, l.pc)
	}
}

func TestBreakContinueRequireEnclosingLoop(t *testing.T) {
	b := newTestBuilder()
	if err := b.EmitBreak(); err != ErrNoEnclosingLoop {
		t.Fatalf("EmitBreak outside a loop: got %v, want ErrNoEnclosingLoop", err)
	}
	if err := b.EmitContinue(); err != ErrNoEnclosingLoop {
		t.Fatalf("EmitContinue outside a loop: got %v, want ErrNoEnclosingLoop", err)
	}
}

func TestShouldUseTableswitchDensityBoundary(t *testing.T) {
	cases := []struct {
		name           string
		n              int
		low, high      int64
		wantTableswitch bool
	}{
		{"dense_contiguous", 5, 0, 4, true},
		{"sparse_wide_range", 3, 0, 10000, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ShouldUseTableswitch(c.n, c.low, c.high)
			if got != c.wantTableswitch {
				t.Fatalf("ShouldUseTableswitch(%d, %d, %d) = %v, want %v", c.n, c.low, c.high, got, c.wantTableswitch)
			}
		})
	}
}

func TestAllocateLocalReusedAfterEndBlock(t *testing.T) {
	b := newTestBuilder()
	b.SetParam(0, jvmtypes.CategoryInt) // param slot 0

	b.BeginBlock()
	first := b.AllocateLocal(jvmtypes.CategoryInt)
	b.EndBlock()

	b.BeginBlock()
	second := b.AllocateLocal(jvmtypes.CategoryInt)
	b.EndBlock()

	if first != second {
		t.Fatalf("expected block-scoped slot reuse, got slots %d and %d", first, second)
	}
}

func TestWideLocalReservesTwoSlots(t *testing.T) {
	b := newTestBuilder()
	slot := b.AllocateLocal(jvmtypes.CategoryLong)
	next := b.AllocateLocal(jvmtypes.CategoryInt)
	if next != slot+2 {
		t.Fatalf("long local at %d should reserve two slots; next allocation got %d, want %d", slot, next, slot+2)
	}
}

// padCode appends n no-op bytes directly to the instruction stream, standing
// in for a large method body so a branch's offset overflows a signed
// 16-bit operand without actually emitting ~32KB of real instructions.
func padCode(b *Builder, n int) {
	for i := 0; i < n; i++ {
		b.code = append(b.code, opNop)
		b.pc++
	}
}

func TestResolveJumpsWidensUnconditionalGotoPastInt16Range(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)
	if err := b.Jump(l); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	padCode(b, 40000)
	if err := b.PlaceLabel(l); err != nil {
		t.Fatalf("PlaceLabel: %v", err)
	}
	b.ReturnVoid()

	if err := b.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}

	if b.code[0] != opGotoW {
		t.Fatalf("goto at offset 0 was not widened to goto_w, opcode = 0x%x", b.code[0])
	}
	offset := int32(uint32(b.code[1])<<24 | uint32(b.code[2])<<16 | uint32(b.code[3])<<8 | uint32(b.code[4]))
	if int(offset) != l.pc {
		t.Fatalf("patched goto_w offset = %d, want %d", offset, l.pc)
	}
}

func TestResolveJumpsWidensConditionalBranchPastInt16Range(t *testing.T) {
	b := newTestBuilder()
	l := b.CreateLabel(LabelPlain)
	b.Iconst(0)
	if err := b.JumpIf(CondIfEq, l); err != nil {
		t.Fatalf("JumpIf: %v", err)
	}
	padCode(b, 40000)
	if err := b.PlaceLabel(l); err != nil {
		t.Fatalf("PlaceLabel: %v", err)
	}
	b.ReturnVoid()

	if err := b.ResolveJumps(); err != nil {
		t.Fatalf("ResolveJumps: %v", err)
	}

	// code[0] is iconst_0; ifeq (now negated to ifne) starts at code[1],
	// short-branching 8 bytes ahead to skip a synthesized goto_w that
	// carries the real (now-widened) target.
	if b.code[1] != opIfne {
		t.Fatalf("ifeq was not negated for widening, opcode = 0x%x", b.code[1])
	}
	shortOffset := int16(uint16(b.code[2])<<8 | uint16(b.code[3]))
	if shortOffset != 8 {
		t.Fatalf("negated short-branch offset = %d, want 8", shortOffset)
	}
	if b.code[4] != opGotoW {
		t.Fatalf("expected goto_w at offset 4, got opcode 0x%x", b.code[4])
	}
	wideOffset := int32(uint32(b.code[5])<<24 | uint32(b.code[6])<<16 | uint32(b.code[7])<<8 | uint32(b.code[8]))
	// the synthesized goto_w sits at code offset 4 (1-byte iconst_0, 3-byte
	// negated short branch); its offset is relative to that opcode's own pc.
	if want := l.pc - 4; int(wideOffset) != want {
		t.Fatalf("patched goto_w offset = %d, want %d", wideOffset, want)
	}
}
