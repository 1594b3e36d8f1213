// Package constpool is the C2 component: an append-only, de-duplicating
// JVM constant pool builder shared across every method of one class.
package constpool

import (
	"fmt"
	"math"

	"cminor.dev/jvmgen/pkg/cminorast"
)

// Kind is the constant_pool tag of an Entry, named after the JVM spec's own
// CONSTANT_* tags (minus the CONSTANT_ prefix, for brevity).
type Kind string

const (
	KindUtf8        Kind = "Utf8"
	KindClass       Kind = "Class"
	KindString      Kind = "String"
	KindInteger     Kind = "Integer"
	KindLong        Kind = "Long"
	KindFloat       Kind = "Float"
	KindDouble      Kind = "Double"
	KindNameAndType Kind = "NameAndType"
	KindFieldref    Kind = "Fieldref"
	KindMethodref   Kind = "Methodref"
)

// Entry is one constant pool slot. Only the fields relevant to Kind are
// populated; the rest are left zero.
type Entry struct {
	Kind Kind

	// KindUtf8
	Utf8 string

	// KindClass: index of the Utf8 entry holding the internal class name
	ClassNameIndex int

	// KindString: index of the Utf8 entry holding the string's bytes
	StringUtf8Index int

	// KindInteger / KindFloat
	IntValue   int32
	FloatValue float32

	// KindLong / KindDouble
	LongValue   int64
	DoubleValue float64

	// KindNameAndType
	NameIndex int // Utf8 index
	DescIndex int // Utf8 index

	// KindFieldref / KindMethodref
	OwnerClassIndex   int // Class index
	NameAndTypeIndex  int // NameAndType index
}

// MethodRefMeta is the extra bookkeeping retained for methodref entries
// added via AddMethodrefTyped, used by C5 to resolve in-class calls back
// to the FunctionDeclaration that produced them.
type MethodRefMeta struct {
	Callee   *cminorast.FunctionDeclaration
	ArgCount int
}

// Builder owns one class's constant pool: append-only, structurally
// de-duplicating, monotonically growing. It is shared (read-mostly append)
// across every method of the class and is never shared across classes or
// re-interpreted once built (spec.md §5).
type Builder struct {
	entries []Entry         // in pool order; a wide entry occupies one slice slot but two pool indices, so pool index and slice position diverge after one (see byIndex)
	byIndex map[int]int     // JVM constant pool index -> slice index into entries
	byKey   map[string]int  // structural dedup key -> JVM constant pool index
	nextIdx int             // next index to hand out; starts at 1, matching constant_pool_count semantics

	methodMeta map[int]MethodRefMeta // JVM index -> retained call metadata, for AddMethodrefTyped entries
}

// NewBuilder returns an empty Builder ready to accept entries for one class.
func NewBuilder() *Builder {
	return &Builder{
		byIndex:    map[int]int{},
		byKey:      map[string]int{},
		nextIdx:    1,
		methodMeta: map[int]MethodRefMeta{},
	}
}

// Entries returns the pool contents in insertion order, for the serializer.
func (b *Builder) Entries() []Entry { return b.entries }

// Len returns the number of logical entries. A wide entry counts once here
// even though it reserves two indices, so once the pool holds a Long or
// Double this is less than constant_pool_count - 1.
func (b *Builder) Len() int { return len(b.entries) }

func (b *Builder) intern(key string, e Entry, slots int) int {
	if idx, ok := b.byKey[key]; ok {
		return idx
	}

	idx := b.nextIdx
	b.byIndex[idx] = len(b.entries)
	b.entries = append(b.entries, e)
	b.byKey[key] = idx
	b.nextIdx += slots
	return idx
}

// AddUTF8 interns a UTF-8 constant, returning its index.
func (b *Builder) AddUTF8(s string) int {
	return b.intern("utf8:"+s, Entry{Kind: KindUtf8, Utf8: s}, 1)
}

// AddClass interns a CONSTANT_Class_info for the given internal class name
// (e.g. "java/lang/String", "[I", "__intPtr"), returning its index.
func (b *Builder) AddClass(internalName string) int {
	key := "class:" + internalName
	if idx, ok := b.byKey[key]; ok {
		return idx
	}
	nameIdx := b.AddUTF8(internalName)
	return b.intern(key, Entry{Kind: KindClass, ClassNameIndex: nameIdx}, 1)
}

// AddString interns a CONSTANT_String_info. bytes are stored verbatim
// (embedded NULs preserved) with a trailing NUL appended for C-string
// compatibility on the runtime side.
func (b *Builder) AddString(bytes []byte) int {
	withNUL := string(append(append([]byte{}, bytes...), 0))
	key := "string:" + withNUL
	if idx, ok := b.byKey[key]; ok {
		return idx
	}
	utf8Idx := b.AddUTF8(withNUL)
	return b.intern(key, Entry{Kind: KindString, StringUtf8Index: utf8Idx}, 1)
}

// AddInteger interns a CONSTANT_Integer_info, returning its index.
func (b *Builder) AddInteger(v int32) int {
	return b.intern(fmt.Sprintf("int:%d", v), Entry{Kind: KindInteger, IntValue: v}, 1)
}

// AddLong interns a CONSTANT_Long_info. Long entries reserve two constant
// pool indices per the JVM spec; the builder accounts for that in index
// allocation even though the serializer performs the actual encoding.
func (b *Builder) AddLong(v int64) int {
	return b.intern(fmt.Sprintf("long:%d", v), Entry{Kind: KindLong, LongValue: v}, 2)
}

// AddFloat interns a CONSTANT_Float_info, keyed on the bit pattern so that
// two NaN or signed-zero encodings used identically by the emitter
// de-duplicate rather than relying on fragile float equality.
func (b *Builder) AddFloat(v float32) int {
	key := fmt.Sprintf("float:%x", math.Float32bits(v))
	return b.intern(key, Entry{Kind: KindFloat, FloatValue: v}, 1)
}

// AddDouble interns a CONSTANT_Double_info; see AddLong for the two-slot
// note and AddFloat for the bit-pattern dedup key.
func (b *Builder) AddDouble(v float64) int {
	key := fmt.Sprintf("double:%x", math.Float64bits(v))
	return b.intern(key, Entry{Kind: KindDouble, DoubleValue: v}, 2)
}

func (b *Builder) addNameAndType(name, descriptor string) int {
	key := "nat:" + name + ":" + descriptor
	if idx, ok := b.byKey[key]; ok {
		return idx
	}
	nameIdx := b.AddUTF8(name)
	descIdx := b.AddUTF8(descriptor)
	return b.intern(key, Entry{Kind: KindNameAndType, NameIndex: nameIdx, DescIndex: descIdx}, 1)
}

// AddFieldref interns a CONSTANT_Fieldref_info for owner.name:descriptor.
func (b *Builder) AddFieldref(owner, name, descriptor string) int {
	key := "fieldref:" + owner + "." + name + ":" + descriptor
	if idx, ok := b.byKey[key]; ok {
		return idx
	}
	classIdx := b.AddClass(owner)
	natIdx := b.addNameAndType(name, descriptor)
	return b.intern(key, Entry{Kind: KindFieldref, OwnerClassIndex: classIdx, NameAndTypeIndex: natIdx}, 1)
}

// AddMethodref interns a CONSTANT_Methodref_info for owner.name:descriptor.
func (b *Builder) AddMethodref(owner, name, descriptor string) int {
	key := "methodref:" + owner + "." + name + ":" + descriptor
	if idx, ok := b.byKey[key]; ok {
		return idx
	}
	classIdx := b.AddClass(owner)
	natIdx := b.addNameAndType(name, descriptor)
	return b.intern(key, Entry{Kind: KindMethodref, OwnerClassIndex: classIdx, NameAndTypeIndex: natIdx}, 1)
}

// AddMethodrefTyped interns under the same de-duplication key as
// AddMethodref, additionally retaining calleeMeta/argCount so C5 can
// resolve in-class calls (e.g. to validate argument counts against a
// variadic callee) without threading the FunctionDeclaration separately.
func (b *Builder) AddMethodrefTyped(owner, name, descriptor string, callee *cminorast.FunctionDeclaration, argCount int) int {
	idx := b.AddMethodref(owner, name, descriptor)
	if _, exists := b.methodMeta[idx]; !exists {
		b.methodMeta[idx] = MethodRefMeta{Callee: callee, ArgCount: argCount}
	}
	return idx
}

// MethodMeta returns the metadata retained for a methodref index added via
// AddMethodrefTyped, if any.
func (b *Builder) MethodMeta(index int) (MethodRefMeta, bool) {
	meta, ok := b.methodMeta[index]
	return meta, ok
}
