// Package codebuilder is the C3 component: the operand-stack and
// local-slot machine that emits JVM bytecode for one method at a time.
// It owns the instruction buffer, the frame, the label registry, the
// control stack, and the `alive` reachability bit. It never looks at the
// Cminor AST; pkg/lowering and pkg/codegen drive it.
package codebuilder

import (
	"encoding/binary"
	"fmt"

	"cminor.dev/jvmgen/pkg/constpool"
	"cminor.dev/jvmgen/pkg/jvmtypes"
	"cminor.dev/jvmgen/pkg/utils"
)

// LineEntry maps a source line to the pc it first produced bytecode for.
type LineEntry struct {
	Line int
	PC   int
}

// Builder emits one method's code. A fresh Builder is constructed per
// method and dropped at method end (spec.md §3's "Ownership").
type Builder struct {
	pool *constpool.Builder

	code []byte
	pc   int

	frame        Frame
	maxStackSeen int
	maxLocalsSeen int

	blockMarks []int // stack of nextLocal watermarks, for begin_block/end_block temp reuse
	nextLocal  int

	labelSeq int
	labels   []*Label
	pending  []pendingJump

	controlStack utils.Stack[ControlEntry]
	alive        bool

	lines []LineEntry
	lastLine int
}

// NewBuilder returns a Builder ready to receive a method's parameter
// slots. pool is the class's shared constant pool builder (C2).
func NewBuilder(pool *constpool.Builder) *Builder {
	return &Builder{pool: pool, alive: true, lastLine: -1}
}

// SetParam installs cat at slot as part of initial frame construction.
// The initial frame must be derivable from the method descriptor alone
// (spec.md §3); heap-lift wrapper locals are allocated separately via
// AllocateLocal, never via SetParam.
func (b *Builder) SetParam(slot int, cat jvmtypes.ValueCategory) {
	b.setLocal(slot, cat)
	width := slotsFor(cat)
	if slot+width > b.nextLocal {
		b.nextLocal = slot + width
	}
}

// AllocateLocal reserves a fresh local slot (or slot pair, for wide
// categories) respecting the current block's watermark, and returns its
// index.
func (b *Builder) AllocateLocal(cat jvmtypes.ValueCategory) int {
	slot := b.nextLocal
	width := slotsFor(cat)
	b.nextLocal += width
	b.setLocal(slot, cat)
	return slot
}

// AllocateLocalClass is AllocateLocal for a reference-category slot whose
// concrete internal class name (e.g. "[I" for a heap-lift wrapper array, or
// a struct/pointer-wrapper class) must survive into the StackMapTable
// instead of being widened to java/lang/Object — required whenever the
// slot is later read with getfield/checkcast/a{load,store} across a label
// that saves a frame (spec.md §8; heap-lifted locals live across loop
// back-edges and are exactly this case).
func (b *Builder) AllocateLocalClass(cat jvmtypes.ValueCategory, className string) int {
	slot := b.nextLocal
	width := slotsFor(cat)
	b.nextLocal += width
	b.setLocalClass(slot, cat, className)
	return slot
}

// BeginBlock opens a scope whose locally allocated temp slots may be
// reused once EndBlock closes it.
func (b *Builder) BeginBlock() {
	b.blockMarks = append(b.blockMarks, b.nextLocal)
}

// EndBlock closes the innermost open block, rewinding the slot allocator
// to the watermark captured at the matching BeginBlock. maxLocalsSeen is
// unaffected: it tracks the high-water mark ever needed, for max_locals.
func (b *Builder) EndBlock() {
	n := len(b.blockMarks)
	mark := b.blockMarks[n-1]
	b.blockMarks = b.blockMarks[:n-1]
	b.nextLocal = mark
}

// Alive reports the current reachability state.
func (b *Builder) Alive() bool { return b.alive }

// SetAlive forcibly sets the reachability bit; used by C5 at statement
// boundaries that the label machinery does not itself revive (e.g. the
// fallthrough edge out of an `if` with no label of its own).
func (b *Builder) SetAlive(v bool) { b.alive = v }

// Frame returns a copy of the live frame, for callers that need to peek
// (e.g. switch entry-frame snapshotting) without risking mutation.
func (b *Builder) Frame() Frame { return b.frame.Clone() }

// PC returns the current instruction-stream position.
func (b *Builder) PC() int { return b.pc }

// MarkLine records that subsequent instructions originate from source
// line. A call repeating the previously marked line adds nothing; a line
// marked again after a different one gets a further entry.
func (b *Builder) MarkLine(line int) {
	if line == b.lastLine {
		return
	}
	b.lines = append(b.lines, LineEntry{Line: line, PC: b.pc})
	b.lastLine = line
}

// Code returns the emitted instruction bytes. Only valid after ResolveJumps.
func (b *Builder) Code() []byte { return b.code }

// MaxStack/MaxLocals report the high-water marks needed by the method's
// Code attribute.
func (b *Builder) MaxStack() int  { return b.maxStackSeen }
func (b *Builder) MaxLocals() int { return b.maxLocalsSeen }

// LineTable returns the recorded source-line/pc pairs.
func (b *Builder) LineTable() []LineEntry { return b.lines }

// ---------------------------------------------------------------------------
// raw emission

func (b *Builder) emit8(v byte) {
	if !b.alive {
		return
	}
	b.code = append(b.code, v)
	b.pc++
}

func (b *Builder) emitU16(v int) {
	if !b.alive {
		return
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	b.code = append(b.code, buf[:]...)
	b.pc += 2
}

func (b *Builder) emitU32(v uint32) {
	if !b.alive {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.code = append(b.code, buf[:]...)
	b.pc += 4
}

// ---------------------------------------------------------------------------
// constants

func (b *Builder) Iconst(v int32) {
	switch {
	case v >= -1 && v <= 5:
		b.emit8(byte(opIconstM1 + int(v) + 1))
	case v >= -128 && v <= 127:
		b.emit8(opBipush)
		b.emit8(byte(v))
	case v >= -32768 && v <= 32767:
		b.emit8(opSipush)
		b.emitU16(int(v))
	default:
		idx := b.pool.AddInteger(v)
		b.ldc(idx)
	}
	b.push(jvmtypes.CategoryInt)
}

func (b *Builder) Lconst(v int64) {
	if v == 0 {
		b.emit8(opLconst0)
	} else if v == 1 {
		b.emit8(opLconst1)
	} else {
		idx := b.pool.AddLong(v)
		b.ldc2w(idx)
	}
	b.push(jvmtypes.CategoryLong)
}

func (b *Builder) Fconst(v float32) {
	switch v {
	case 0:
		b.emit8(opFconst0)
	case 1:
		b.emit8(opFconst1)
	case 2:
		b.emit8(opFconst2)
	default:
		idx := b.pool.AddFloat(v)
		b.ldc(idx)
	}
	b.push(jvmtypes.CategoryFloat)
}

func (b *Builder) Dconst(v float64) {
	switch v {
	case 0:
		b.emit8(opDconst0)
	case 1:
		b.emit8(opDconst1)
	default:
		idx := b.pool.AddDouble(v)
		b.ldc2w(idx)
	}
	b.push(jvmtypes.CategoryDouble)
}

// Ldc pushes a previously-interned constant-pool index of reference or
// int/float category.
func (b *Builder) Ldc(index int, cat jvmtypes.ValueCategory) {
	if cat.IsWide() {
		b.ldc2w(index)
	} else {
		b.ldc(index)
	}
	b.push(cat)
}

func (b *Builder) ldc(index int) {
	if index <= 0xff {
		b.emit8(opLdc)
		b.emit8(byte(index))
	} else {
		b.emit8(opLdcW)
		b.emitU16(index)
	}
}

func (b *Builder) ldc2w(index int) {
	b.emit8(opLdc2W)
	b.emitU16(index)
}

// AconstNull pushes a raw null reference (used only for void* contexts;
// every wrapped pointer type uses the null-wrapper construction instead,
// per spec.md §4.5).
func (b *Builder) AconstNull() {
	b.emit8(opAconstNull)
	b.push(jvmtypes.CategoryReference)
}

// ---------------------------------------------------------------------------
// loads / stores

func (b *Builder) loadOp(cat jvmtypes.ValueCategory) byte {
	switch cat {
	case jvmtypes.CategoryLong:
		return opLload
	case jvmtypes.CategoryFloat:
		return opFload
	case jvmtypes.CategoryDouble:
		return opDload
	case jvmtypes.CategoryReference:
		return opAload
	default:
		return opIload
	}
}

func (b *Builder) storeOp(cat jvmtypes.ValueCategory) byte {
	switch cat {
	case jvmtypes.CategoryLong:
		return opLstore
	case jvmtypes.CategoryFloat:
		return opFstore
	case jvmtypes.CategoryDouble:
		return opDstore
	case jvmtypes.CategoryReference:
		return opAstore
	default:
		return opIstore
	}
}

// Load emits the category-correct xload from slot.
func (b *Builder) Load(slot int, cat jvmtypes.ValueCategory) {
	b.emit8(b.loadOp(cat))
	b.emit8(byte(slot))
	b.push(cat)
}

// Store emits the category-correct xstore into slot, consuming the top of
// stack.
func (b *Builder) Store(slot int, cat jvmtypes.ValueCategory) error {
	if err := b.popExact(cat); err != nil {
		return err
	}
	b.emit8(b.storeOp(cat))
	b.emit8(byte(slot))
	b.setLocal(slot, cat)
	return nil
}

// ---------------------------------------------------------------------------
// array loads/stores

// ArrayLoad emits the element-category-correct xaload, consuming
// [array, index] and pushing the element. narrowKind selects baload
// (shared by byte[] and boolean[]) or saload for narrow int-category
// element arrays in place of iaload; unsigned char masking happens at the
// C4 layer above this.
func (b *Builder) ArrayLoad(elemCat jvmtypes.ValueCategory, narrowKind NarrowArrayKind) error {
	if err := b.popExact(jvmtypes.CategoryInt); err != nil { // index
		return err
	}
	if err := b.popExact(jvmtypes.CategoryReference); err != nil { // array ref
		return err
	}

	var op byte
	switch {
	case narrowKind == NarrowByteOrBool:
		op = opBaload
	case narrowKind == NarrowChar:
		op = opCaload
	case narrowKind == NarrowShort:
		op = opSaload
	default:
		switch elemCat {
		case jvmtypes.CategoryLong:
			op = opLaload
		case jvmtypes.CategoryFloat:
			op = opFaload
		case jvmtypes.CategoryDouble:
			op = opDaload
		case jvmtypes.CategoryReference:
			op = opAaload
		default:
			op = opIaload
		}
	}
	b.emit8(op)
	b.push(elemCat)
	return nil
}

// NarrowArrayKind distinguishes the byte/char/short element loads, which
// share value category INT with plain int arrays but use distinct
// opcodes.
type NarrowArrayKind int

const (
	NarrowNone NarrowArrayKind = iota
	NarrowByteOrBool
	NarrowChar
	NarrowShort
)

// ArrayStore emits the element-category-correct xastore, consuming
// [array, index, value].
func (b *Builder) ArrayStore(elemCat jvmtypes.ValueCategory, narrowKind NarrowArrayKind) error {
	if err := b.popExact(elemCat); err != nil {
		return err
	}
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}

	var op byte
	switch {
	case narrowKind == NarrowByteOrBool:
		op = opBastore
	case narrowKind == NarrowChar:
		op = opCastore
	case narrowKind == NarrowShort:
		op = opSastore
	default:
		switch elemCat {
		case jvmtypes.CategoryLong:
			op = opLastore
		case jvmtypes.CategoryFloat:
			op = opFastore
		case jvmtypes.CategoryDouble:
			op = opDastore
		case jvmtypes.CategoryReference:
			op = opAastore
		default:
			op = opIastore
		}
	}
	b.emit8(op)
	return nil
}

// ---------------------------------------------------------------------------
// arithmetic / conversions / comparisons

// ArithOp names an arithmetic or bitwise operation; the JVM opcode for it
// is chosen together with the operands' value category.
type ArithOp string

const (
	ArithAdd ArithOp = "add"
	ArithSub ArithOp = "sub"
	ArithMul ArithOp = "mul"
	ArithDiv ArithOp = "div"
	ArithRem ArithOp = "rem"
	ArithNeg ArithOp = "neg"
	ArithAnd ArithOp = "and"
	ArithOr  ArithOp = "or"
	ArithXor ArithOp = "xor"
	ArithShl ArithOp = "shl"
	ArithShr ArithOp = "shr"  // arithmetic (signed) shift right
	ArithUshr ArithOp = "ushr" // logical (unsigned) shift right
)

var binaryArithOps = map[ArithOp]map[jvmtypes.ValueCategory]byte{
	ArithAdd: {jvmtypes.CategoryInt: opIadd, jvmtypes.CategoryLong: opLadd, jvmtypes.CategoryFloat: opFadd, jvmtypes.CategoryDouble: opDadd},
	ArithSub: {jvmtypes.CategoryInt: opIsub, jvmtypes.CategoryLong: opLsub, jvmtypes.CategoryFloat: opFsub, jvmtypes.CategoryDouble: opDsub},
	ArithMul: {jvmtypes.CategoryInt: opImul, jvmtypes.CategoryLong: opLmul, jvmtypes.CategoryFloat: opFmul, jvmtypes.CategoryDouble: opDmul},
	ArithDiv: {jvmtypes.CategoryInt: opIdiv, jvmtypes.CategoryLong: opLdiv, jvmtypes.CategoryFloat: opFdiv, jvmtypes.CategoryDouble: opDdiv},
	ArithRem: {jvmtypes.CategoryInt: opIrem, jvmtypes.CategoryLong: opLrem, jvmtypes.CategoryFloat: opFrem, jvmtypes.CategoryDouble: opDrem},
	ArithAnd: {jvmtypes.CategoryInt: opIand, jvmtypes.CategoryLong: opLand},
	ArithOr:  {jvmtypes.CategoryInt: opIor, jvmtypes.CategoryLong: opLor},
	ArithXor: {jvmtypes.CategoryInt: opIxor, jvmtypes.CategoryLong: opLxor},
}

var unaryArithOps = map[jvmtypes.ValueCategory]byte{
	jvmtypes.CategoryInt: opIneg, jvmtypes.CategoryLong: opLneg, jvmtypes.CategoryFloat: opFneg, jvmtypes.CategoryDouble: opDneg,
}

// BinaryArith emits the category-correct arithmetic opcode, consuming two
// values of cat and pushing one.
func (b *Builder) BinaryArith(op ArithOp, cat jvmtypes.ValueCategory) error {
	if op == ArithShl || op == ArithShr || op == ArithUshr {
		return b.shift(op, cat)
	}

	family, ok := binaryArithOps[op]
	if !ok {
		return fmt.Errorf("codebuilder: unsupported binary arithmetic op %q", op)
	}
	code, ok := family[cat]
	if !ok {
		return fmt.Errorf("codebuilder: arithmetic op %q has no %s variant", op, cat)
	}
	if err := b.popExact(cat); err != nil {
		return err
	}
	if err := b.popExact(cat); err != nil {
		return err
	}
	b.emit8(code)
	b.push(cat)
	return nil
}

// shift handles ishl/ishr/iushr/lshl/lshr/lushr, whose shift-amount
// operand is always a plain int regardless of the shifted value's
// category.
func (b *Builder) shift(op ArithOp, cat jvmtypes.ValueCategory) error {
	var table map[jvmtypes.ValueCategory]byte
	switch op {
	case ArithShl:
		table = map[jvmtypes.ValueCategory]byte{jvmtypes.CategoryInt: opIshl, jvmtypes.CategoryLong: opLshl}
	case ArithShr:
		table = map[jvmtypes.ValueCategory]byte{jvmtypes.CategoryInt: opIshr, jvmtypes.CategoryLong: opLshr}
	default:
		table = map[jvmtypes.ValueCategory]byte{jvmtypes.CategoryInt: opIushr, jvmtypes.CategoryLong: opLushr}
	}
	code, ok := table[cat]
	if !ok {
		return fmt.Errorf("codebuilder: shift op %q has no %s variant", op, cat)
	}
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	if err := b.popExact(cat); err != nil {
		return err
	}
	b.emit8(code)
	b.push(cat)
	return nil
}

// UnaryNeg emits the category-correct negation.
func (b *Builder) UnaryNeg(cat jvmtypes.ValueCategory) error {
	code, ok := unaryArithOps[cat]
	if !ok {
		return fmt.Errorf("codebuilder: neg has no %s variant", cat)
	}
	if err := b.popExact(cat); err != nil {
		return err
	}
	b.emit8(code)
	b.push(cat)
	return nil
}

// Convert emits a numeric conversion instruction between two categories
// (or a narrowing int-to-byte/char/short, named explicitly since those
// don't change category).
type ConvertKind string

const (
	ConvI2L ConvertKind = "i2l"
	ConvI2F ConvertKind = "i2f"
	ConvI2D ConvertKind = "i2d"
	ConvL2I ConvertKind = "l2i"
	ConvL2F ConvertKind = "l2f"
	ConvL2D ConvertKind = "l2d"
	ConvF2I ConvertKind = "f2i"
	ConvF2L ConvertKind = "f2l"
	ConvF2D ConvertKind = "f2d"
	ConvD2I ConvertKind = "d2i"
	ConvD2L ConvertKind = "d2l"
	ConvD2F ConvertKind = "d2f"
	ConvI2B ConvertKind = "i2b"
	ConvI2C ConvertKind = "i2c"
	ConvI2S ConvertKind = "i2s"
)

var convertOpcode = map[ConvertKind]byte{
	ConvI2L: opI2l, ConvI2F: opI2f, ConvI2D: opI2d,
	ConvL2I: opL2i, ConvL2F: opL2f, ConvL2D: opL2d,
	ConvF2I: opF2i, ConvF2L: opF2l, ConvF2D: opF2d,
	ConvD2I: opD2i, ConvD2L: opD2l, ConvD2F: opD2f,
	ConvI2B: opI2b, ConvI2C: opI2c, ConvI2S: opI2s,
}

var convertFrom = map[ConvertKind]jvmtypes.ValueCategory{
	ConvI2L: jvmtypes.CategoryInt, ConvI2F: jvmtypes.CategoryInt, ConvI2D: jvmtypes.CategoryInt,
	ConvL2I: jvmtypes.CategoryLong, ConvL2F: jvmtypes.CategoryLong, ConvL2D: jvmtypes.CategoryLong,
	ConvF2I: jvmtypes.CategoryFloat, ConvF2L: jvmtypes.CategoryFloat, ConvF2D: jvmtypes.CategoryFloat,
	ConvD2I: jvmtypes.CategoryDouble, ConvD2L: jvmtypes.CategoryDouble, ConvD2F: jvmtypes.CategoryDouble,
	ConvI2B: jvmtypes.CategoryInt, ConvI2C: jvmtypes.CategoryInt, ConvI2S: jvmtypes.CategoryInt,
}

var convertTo = map[ConvertKind]jvmtypes.ValueCategory{
	ConvI2L: jvmtypes.CategoryLong, ConvI2F: jvmtypes.CategoryFloat, ConvI2D: jvmtypes.CategoryDouble,
	ConvL2I: jvmtypes.CategoryInt, ConvL2F: jvmtypes.CategoryFloat, ConvL2D: jvmtypes.CategoryDouble,
	ConvF2I: jvmtypes.CategoryInt, ConvF2L: jvmtypes.CategoryLong, ConvF2D: jvmtypes.CategoryDouble,
	ConvD2I: jvmtypes.CategoryInt, ConvD2L: jvmtypes.CategoryLong, ConvD2F: jvmtypes.CategoryFloat,
	ConvI2B: jvmtypes.CategoryInt, ConvI2C: jvmtypes.CategoryInt, ConvI2S: jvmtypes.CategoryInt,
}

func (b *Builder) Convert(kind ConvertKind) error {
	if err := b.popExact(convertFrom[kind]); err != nil {
		return err
	}
	b.emit8(convertOpcode[kind])
	b.push(convertTo[kind])
	return nil
}

// Compare emits lcmp/fcmpl/fcmpg/dcmpl/dcmpg, consuming two long, float or
// double values and pushing a plain int (-1/0/1) per the JVM's comparison semantics;
// nanBiasPositive selects fcmpg/dcmpg (NaN compares greater) over
// fcmpl/dcmpl (NaN compares less), matching which comparison the source
// expression needs to come out false-on-NaN.
func (b *Builder) Compare(cat jvmtypes.ValueCategory, nanBiasPositive bool) error {
	if err := b.popExact(cat); err != nil {
		return err
	}
	if err := b.popExact(cat); err != nil {
		return err
	}
	var op byte
	switch cat {
	case jvmtypes.CategoryLong:
		op = opLcmp
	case jvmtypes.CategoryFloat:
		if nanBiasPositive {
			op = opFcmpg
		} else {
			op = opFcmpl
		}
	case jvmtypes.CategoryDouble:
		if nanBiasPositive {
			op = opDcmpg
		} else {
			op = opDcmpl
		}
	default:
		return fmt.Errorf("codebuilder: Compare has no %s variant", cat)
	}
	b.emit8(op)
	b.push(jvmtypes.CategoryInt)
	return nil
}

// ---------------------------------------------------------------------------
// invocations / field access / object-array creation / type checks

func (b *Builder) Getstatic(owner, name, desc string, cat jvmtypes.ValueCategory) {
	idx := b.pool.AddFieldref(owner, name, desc)
	b.emit8(opGetstatic)
	b.emitU16(idx)
	b.push(cat)
}

func (b *Builder) Putstatic(owner, name, desc string, cat jvmtypes.ValueCategory) error {
	if err := b.popExact(cat); err != nil {
		return err
	}
	idx := b.pool.AddFieldref(owner, name, desc)
	b.emit8(opPutstatic)
	b.emitU16(idx)
	return nil
}

func (b *Builder) Getfield(owner, name, desc string, cat jvmtypes.ValueCategory) error {
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	idx := b.pool.AddFieldref(owner, name, desc)
	b.emit8(opGetfield)
	b.emitU16(idx)
	b.push(cat)
	return nil
}

func (b *Builder) Putfield(owner, name, desc string, cat jvmtypes.ValueCategory) error {
	if err := b.popExact(cat); err != nil {
		return err
	}
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	idx := b.pool.AddFieldref(owner, name, desc)
	b.emit8(opPutfield)
	b.emitU16(idx)
	return nil
}

// InvokeKind selects the invoke family.
type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeVirtual
	InvokeSpecial
)

// Invoke pops argCats (receiver first if kind != InvokeStatic) in order
// and pushes retCat unless retCat is empty (void).
func (b *Builder) Invoke(kind InvokeKind, owner, name, desc string, argCats []jvmtypes.ValueCategory, retCat jvmtypes.ValueCategory) error {
	for i := len(argCats) - 1; i >= 0; i-- {
		if err := b.popExact(argCats[i]); err != nil {
			return err
		}
	}
	if kind != InvokeStatic {
		if err := b.popExact(jvmtypes.CategoryReference); err != nil {
			return err
		}
	}

	idx := b.pool.AddMethodref(owner, name, desc)
	switch kind {
	case InvokeStatic:
		b.emit8(opInvokestatic)
	case InvokeVirtual:
		b.emit8(opInvokevirtual)
	case InvokeSpecial:
		b.emit8(opInvokespecial)
	}
	b.emitU16(idx)

	if retCat != "" {
		b.push(retCat)
	}
	return nil
}

func (b *Builder) New(className string) {
	idx := b.pool.AddClass(className)
	b.emit8(opNew)
	b.emitU16(idx)
	b.push(jvmtypes.CategoryReference)
}

func (b *Builder) Newarray(primitiveType int) error {
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	b.emit8(opNewarray)
	b.emit8(byte(primitiveType))
	b.push(jvmtypes.CategoryReference)
	return nil
}

func (b *Builder) Anewarray(elementClass string) error {
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	idx := b.pool.AddClass(elementClass)
	b.emit8(opAnewarray)
	b.emitU16(idx)
	b.push(jvmtypes.CategoryReference)
	return nil
}

func (b *Builder) Arraylength() error {
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	b.emit8(opArraylength)
	b.push(jvmtypes.CategoryInt)
	return nil
}

func (b *Builder) Checkcast(className string) error {
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	idx := b.pool.AddClass(className)
	b.emit8(opCheckcast)
	b.emitU16(idx)
	b.push(jvmtypes.CategoryReference)
	return nil
}

func (b *Builder) Instanceof(className string) error {
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	idx := b.pool.AddClass(className)
	b.emit8(opInstanceof)
	b.emitU16(idx)
	b.push(jvmtypes.CategoryInt)
	return nil
}

func (b *Builder) Athrow() error {
	if err := b.popExact(jvmtypes.CategoryReference); err != nil {
		return err
	}
	b.emit8(opAthrow)
	b.alive = false
	return nil
}

// ---------------------------------------------------------------------------
// stack manipulation (category-polymorphic)

// PopValue discards the top-of-stack value, choosing pop or pop2 from its
// actual category. Required wherever C4/C5 discard an expression-statement
// result of unknown wide/narrow shape.
func (b *Builder) PopValue() error {
	cat, err := b.pop()
	if err != nil {
		return err
	}
	if cat.IsWide() {
		b.emit8(opPop2)
	} else {
		b.emit8(opPop)
	}
	return nil
}

// DupValue duplicates the top-of-stack value with dup or dup2, chosen
// from its category.
func (b *Builder) DupValue() error {
	cat, err := b.TopCategory()
	if err != nil {
		return err
	}
	if cat.IsWide() {
		b.emit8(opDup2)
	} else {
		b.emit8(opDup)
	}
	b.push(cat)
	return nil
}

// DupValueX1 duplicates the top-of-stack value and inserts the copy two
// (or three, if wide) values down, choosing dup_x1 or dup2_x1 from the
// top's category. Used for postfix increment / compound-assignment
// expression results that must survive under a store.
func (b *Builder) DupValueX1() error {
	top, err := b.pop()
	if err != nil {
		return err
	}
	under, err := b.pop()
	if err != nil {
		return err
	}
	if under.IsWide() {
		return ErrWideSlotMisaligned
	}
	if top.IsWide() {
		b.emit8(opDup2X1)
	} else {
		b.emit8(opDupX1)
	}
	b.push(top)
	b.push(under)
	b.push(top)
	return nil
}

func (b *Builder) Swap() error {
	a, err := b.pop()
	if err != nil {
		return err
	}
	c, err := b.pop()
	if err != nil {
		return err
	}
	if a.IsWide() || c.IsWide() {
		return ErrWideSlotMisaligned
	}
	b.emit8(opSwap)
	b.push(a)
	b.push(c)
	return nil
}

// ---------------------------------------------------------------------------
// returns

func (b *Builder) returnOp(cat jvmtypes.ValueCategory) byte {
	switch cat {
	case jvmtypes.CategoryLong:
		return opLreturn
	case jvmtypes.CategoryFloat:
		return opFreturn
	case jvmtypes.CategoryDouble:
		return opDreturn
	case jvmtypes.CategoryReference:
		return opAreturn
	default:
		return opIreturn
	}
}

// Return emits the category-correct value-returning instruction,
// consuming the top of stack.
func (b *Builder) Return(cat jvmtypes.ValueCategory) error {
	if err := b.popExact(cat); err != nil {
		return err
	}
	b.emit8(b.returnOp(cat))
	b.alive = false
	return nil
}

// ReturnVoid emits a bare `return`.
func (b *Builder) ReturnVoid() {
	b.emit8(opReturn)
	b.alive = false
}
