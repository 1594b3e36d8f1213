package constpool

import "testing"

func TestAddUTF8Deduplicates(t *testing.T) {
	b := NewBuilder()
	first := b.AddUTF8("hello")
	second := b.AddUTF8("hello")
	if first != second {
		t.Fatalf("AddUTF8 returned distinct indices %d and %d for the same string", first, second)
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after deduplication", b.Len())
	}
}

func TestAddClassInternsItsUTF8Name(t *testing.T) {
	b := NewBuilder()
	classIdx := b.AddClass("java/lang/Object")
	entries := b.Entries()

	e := entries[b.byIndex[classIdx]]
	if e.Kind != KindClass {
		t.Fatalf("entry kind = %s, want Class", e.Kind)
	}
	nameEntry := entries[b.byIndex[e.ClassNameIndex]]
	if nameEntry.Kind != KindUtf8 || nameEntry.Utf8 != "java/lang/Object" {
		t.Fatalf("class name entry = %+v, want Utf8 %q", nameEntry, "java/lang/Object")
	}
}

func TestAddLongAndDoubleReserveTwoIndices(t *testing.T) {
	b := NewBuilder()
	first := b.AddLong(42)
	second := b.AddInteger(7)
	if second != first+2 {
		t.Fatalf("index after a Long = %d, want %d (Long reserves two slots)", second, first+2)
	}
}

func TestAddFloatDeduplicatesByBitPattern(t *testing.T) {
	b := NewBuilder()
	first := b.AddFloat(1.5)
	second := b.AddFloat(1.5)
	if first != second {
		t.Fatalf("AddFloat(1.5) returned distinct indices %d and %d", first, second)
	}
	nan1 := b.AddFloat(float32(nan()))
	nan2 := b.AddFloat(float32(nan()))
	if nan1 != nan2 {
		t.Fatalf("AddFloat(NaN) returned distinct indices %d and %d, want identical bit-pattern dedup", nan1, nan2)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestAddFieldrefAndMethodrefInternOwnerAndNameAndType(t *testing.T) {
	b := NewBuilder()
	fieldIdx := b.AddFieldref("Example", "counter", "I")
	methodIdx := b.AddMethodref("Example", "main", "()V")

	entries := b.Entries()
	fieldEntry := entries[b.byIndex[fieldIdx]]
	if fieldEntry.Kind != KindFieldref {
		t.Fatalf("fieldEntry kind = %s, want Fieldref", fieldEntry.Kind)
	}
	methodEntry := entries[b.byIndex[methodIdx]]
	if methodEntry.Kind != KindMethodref {
		t.Fatalf("methodEntry kind = %s, want Methodref", methodEntry.Kind)
	}

	// Re-adding the same fieldref must return the same index, not append a
	// second entry with a fresh NameAndType/Class pair.
	if again := b.AddFieldref("Example", "counter", "I"); again != fieldIdx {
		t.Fatalf("AddFieldref did not dedup: got %d, want %d", again, fieldIdx)
	}
}

func TestAddMethodrefTypedRetainsMetaOnlyOnce(t *testing.T) {
	b := NewBuilder()
	idx := b.AddMethodrefTyped("Example", "helper", "()I", nil, 0)
	meta, ok := b.MethodMeta(idx)
	if !ok {
		t.Fatalf("MethodMeta missing for a freshly added methodref")
	}
	if meta.ArgCount != 0 {
		t.Fatalf("ArgCount = %d, want 0", meta.ArgCount)
	}

	// A second AddMethodrefTyped call against the same owner/name/descriptor
	// dedups to the same index and must not overwrite the retained meta.
	again := b.AddMethodrefTyped("Example", "helper", "()I", nil, 3)
	if again != idx {
		t.Fatalf("AddMethodrefTyped did not dedup: got %d, want %d", again, idx)
	}
	meta, _ = b.MethodMeta(again)
	if meta.ArgCount != 0 {
		t.Fatalf("ArgCount after re-add = %d, want 0 (first write wins)", meta.ArgCount)
	}
}
