package classfile

import (
	"fmt"
	"math"

	"cminor.dev/jvmgen/pkg/codegen"
	"cminor.dev/jvmgen/pkg/constpool"
)

func float32bits(v float32) uint32 { return math.Float32bits(v) }
func float64bits(v float64) uint64 { return math.Float64bits(v) }

// JVM Spec §4.4 CONSTANT_* tags.
const (
	tagUtf8        = 1
	tagInteger     = 3
	tagFloat       = 4
	tagLong        = 5
	tagDouble      = 6
	tagClass       = 7
	tagString      = 8
	tagFieldref    = 9
	tagMethodref   = 10
	tagNameAndType = 12
)

// pool binds the shared constpool.Builder codegen filled in to the two
// extra indices a class_file needs: this_class and super_class.
type pool struct {
	b          *constpool.Builder
	classIndex int
	superIndex int
}

// buildConstantPool interns this class's own name and its superclass's
// name into the same builder every method body referenced, so the
// pool written out is exactly the pool every Getstatic/Invoke/Checkcast
// in cls.Methods already assumes indices from.
func buildConstantPool(cls *codegen.Class) (*pool, error) {
	if cls.Pool == nil {
		return nil, fmt.Errorf("class %q has no constant pool", cls.Name)
	}
	return &pool{
		b:          cls.Pool,
		classIndex: cls.Pool.AddClass(cls.Name),
		superIndex: cls.Pool.AddClass(cls.Super),
	}, nil
}

// encode writes the constant_pool_count and every entry in pool-index
// order. Long/Double entries consume two JVM indices per the spec but one
// slice slot here; constant_pool_count accounts for the gap even though no
// byte is ever written for the unusable second slot.
func (p *pool) encode(w *writer) error {
	entries := p.b.Entries()

	count := 1
	for _, e := range entries {
		count += slotsFor(e.Kind)
	}
	w.u2(count)

	for _, e := range entries {
		if err := encodeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func slotsFor(k constpool.Kind) int {
	if k == constpool.KindLong || k == constpool.KindDouble {
		return 2
	}
	return 1
}

func encodeEntry(w *writer, e constpool.Entry) error {
	switch e.Kind {
	case constpool.KindUtf8:
		bytes := []byte(e.Utf8)
		w.u1(tagUtf8)
		w.u2(len(bytes))
		w.raw(bytes)
	case constpool.KindClass:
		w.u1(tagClass)
		w.u2(e.ClassNameIndex)
	case constpool.KindString:
		w.u1(tagString)
		w.u2(e.StringUtf8Index)
	case constpool.KindInteger:
		w.u1(tagInteger)
		w.u4(uint32(e.IntValue))
	case constpool.KindFloat:
		w.u1(tagFloat)
		w.u4(float32bits(e.FloatValue))
	case constpool.KindLong:
		w.u1(tagLong)
		w.u8(uint64(e.LongValue))
	case constpool.KindDouble:
		w.u1(tagDouble)
		w.u8(float64bits(e.DoubleValue))
	case constpool.KindNameAndType:
		w.u1(tagNameAndType)
		w.u2(e.NameIndex)
		w.u2(e.DescIndex)
	case constpool.KindFieldref:
		w.u1(tagFieldref)
		w.u2(e.OwnerClassIndex)
		w.u2(e.NameAndTypeIndex)
	case constpool.KindMethodref:
		w.u1(tagMethodref)
		w.u2(e.OwnerClassIndex)
		w.u2(e.NameAndTypeIndex)
	default:
		return fmt.Errorf("classfile: unknown constant pool kind %q", e.Kind)
	}
	return nil
}
