// Package jvmtypes is the C1 component of the code generator: a set of
// (mostly) pure functions mapping a resolved Cminor TypeSpecifier to its
// JVM descriptor, internal class name, operand-stack value category, and
// pointer-runtime kind.
//
// Nothing here mutates the type graph; the only state is Mapper's
// method-descriptor cache, scoped to one compilation unit (spec.md §5:
// "append-only and may be reset between classes").
package jvmtypes

import (
	"errors"
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
)

var (
	ErrUnresolvedTypedef    = errors.New("jvmtypes: unresolved typedef reached the code generator")
	ErrUnsupportedElementKind = errors.New("jvmtypes: unsupported element kind")
	ErrMissingUserTypeName  = errors.New("jvmtypes: named type is missing its user-facing name")
)

// ValueCategory is the JVM operand-stack/local-slot category a value
// belongs to. It drives instruction selection (iadd vs ladd, istore vs
// astore, dup vs dup2, pop vs pop2).
type ValueCategory string

const (
	CategoryInt       ValueCategory = "INT"
	CategoryLong      ValueCategory = "LONG"
	CategoryFloat     ValueCategory = "FLOAT"
	CategoryDouble    ValueCategory = "DOUBLE"
	CategoryReference ValueCategory = "REFERENCE"
)

// IsWide reports whether c occupies two stack/local slots.
func (c ValueCategory) IsWide() bool { return c == CategoryLong || c == CategoryDouble }

// PointerRuntimeKind is one of the eight element-class categories that
// select a pointer's runtime wrapper class (__<kind>Ptr).
type PointerRuntimeKind string

const (
	PtrChar   PointerRuntimeKind = "char"
	PtrBool   PointerRuntimeKind = "bool"
	PtrShort  PointerRuntimeKind = "short"
	PtrInt    PointerRuntimeKind = "int"
	PtrLong   PointerRuntimeKind = "long"
	PtrFloat  PointerRuntimeKind = "float"
	PtrDouble PointerRuntimeKind = "double"
	PtrObject PointerRuntimeKind = "object" // struct/union, pointer-to-pointer, and void* when wrapped
)

// WrapperClassName returns the runtime pointer-wrapper class name for a
// pointer runtime kind, e.g. PtrInt -> "__intPtr".
func WrapperClassName(kind PointerRuntimeKind) string {
	return fmt.Sprintf("__%sPtr", string(kind))
}

// Descriptor returns the JVM type descriptor string for t. Fails with
// ErrUnresolvedTypedef for a nil or unrecognized kind, ErrMissingUserTypeName
// for an anonymous struct/union, and ErrUnsupportedElementKind for a
// pointer whose element kind has no wrapper class.
func Descriptor(t *cminorast.TypeSpecifier) (string, error) {
	if t == nil {
		return "", fmt.Errorf("jvmtypes: nil TypeSpecifier: %w", ErrUnresolvedTypedef)
	}

	switch t.Kind {
	case cminorast.KindVoid:
		return "V", nil
	case cminorast.KindBool, cminorast.KindChar:
		return "I", nil // both live as int on the JVM stack; masking happens at load sites
	case cminorast.KindShort:
		return "I", nil
	case cminorast.KindInt, cminorast.KindEnum:
		return "I", nil
	case cminorast.KindLong:
		return "J", nil
	case cminorast.KindFloat:
		return "F", nil
	case cminorast.KindDouble:
		return "D", nil
	case cminorast.KindPointer:
		if t.Elem != nil && t.Elem.Kind == cminorast.KindVoid {
			return "Ljava/lang/Object;", nil
		}
		kind, err := PointerRuntimeKindOf(t)
		if err != nil {
			return "", err
		}
		return "L" + WrapperClassName(kind) + ";", nil
	case cminorast.KindArray:
		elemDesc, err := Descriptor(t.Elem)
		if err != nil {
			return "", fmt.Errorf("array element: %w", err)
		}
		return "[" + elemDesc, nil
	case cminorast.KindStruct, cminorast.KindUnion:
		if t.Name == "" {
			return "", fmt.Errorf("anonymous struct/union has no JVM class: %w", ErrMissingUserTypeName)
		}
		return "L" + t.Name + ";", nil
	default:
		return "", fmt.Errorf("jvmtypes: unrecognized type kind %q: %w", t.Kind, ErrUnresolvedTypedef)
	}
}

// InternalClassName returns the class form of t's descriptor: the
// "java/lang/String", "[I", "__intPtr" form used by CONSTANT_Class_info,
// checkcast, new, and anewarray. Primitives are returned as their
// single-character descriptor for uniformity with array/object internal
// names (the JVM has no "internal name" for primitives otherwise).
func InternalClassName(t *cminorast.TypeSpecifier) (string, error) {
	desc, err := Descriptor(t)
	if err != nil {
		return "", err
	}
	return internalNameFromDescriptor(desc), nil
}

func internalNameFromDescriptor(desc string) string {
	switch {
	case len(desc) == 0:
		return desc
	case desc[0] == 'L' && desc[len(desc)-1] == ';':
		return desc[1 : len(desc)-1]
	default:
		return desc // primitives and array descriptors are already in internal form
	}
}

// Category returns the operand-stack category driven by t's descriptor.
func Category(t *cminorast.TypeSpecifier) (ValueCategory, error) {
	desc, err := Descriptor(t)
	if err != nil {
		return "", err
	}
	return categoryFromDescriptor(desc), nil
}

func categoryFromDescriptor(desc string) ValueCategory {
	switch {
	case desc == "J":
		return CategoryLong
	case desc == "D":
		return CategoryDouble
	case desc == "F":
		return CategoryFloat
	case desc == "I":
		return CategoryInt
	default: // 'L...;' or '[...'
		return CategoryReference
	}
}

// CategoryOfDeclaration returns REFERENCE whenever d is heap-lifted
// (because its storage is a 1-element array on the JVM side), regardless
// of d's Cminor type.
func CategoryOfDeclaration(d *cminorast.Declaration) (ValueCategory, error) {
	if d.NeedsHeapLift {
		return CategoryReference, nil
	}
	return Category(d.Type)
}

// PointerRuntimeKindOf returns the element-kind classification used to pick
// a pointer's wrapper class. t must be a KindPointer type.
func PointerRuntimeKindOf(t *cminorast.TypeSpecifier) (PointerRuntimeKind, error) {
	if t.Kind != cminorast.KindPointer {
		return "", fmt.Errorf("jvmtypes: PointerRuntimeKindOf called on non-pointer kind %q: %w", t.Kind, ErrUnsupportedElementKind)
	}

	elem := t.Elem
	if elem == nil {
		return "", fmt.Errorf("jvmtypes: pointer with nil element type: %w", ErrUnsupportedElementKind)
	}

	switch elem.Kind {
	case cminorast.KindStruct, cminorast.KindUnion, cminorast.KindVoid, cminorast.KindPointer:
		return PtrObject, nil
	case cminorast.KindEnum:
		return PtrInt, nil
	case cminorast.KindBool:
		return PtrBool, nil
	case cminorast.KindChar:
		return PtrChar, nil
	case cminorast.KindShort:
		return PtrShort, nil
	case cminorast.KindInt:
		return PtrInt, nil
	case cminorast.KindLong:
		return PtrLong, nil
	case cminorast.KindFloat:
		return PtrFloat, nil
	case cminorast.KindDouble:
		return PtrDouble, nil
	default:
		return "", fmt.Errorf("jvmtypes: unsupported pointer element kind %q: %w", elem.Kind, ErrUnsupportedElementKind)
	}
}

// ArrayElementDescriptor returns the descriptor of t's element type. t must
// be a KindArray type.
func ArrayElementDescriptor(t *cminorast.TypeSpecifier) (string, error) {
	if t.Kind != cminorast.KindArray {
		return "", fmt.Errorf("jvmtypes: ArrayElementDescriptor called on non-array kind %q", t.Kind)
	}
	return Descriptor(t.Elem)
}

// PointerBaseArrayDescriptor returns the descriptor of the array backing a
// pointer's base field: "[Ljava/lang/Object;" for every object-kind
// pointer, "[<elem>" otherwise.
func PointerBaseArrayDescriptor(t *cminorast.TypeSpecifier) (string, error) {
	kind, err := PointerRuntimeKindOf(t)
	if err != nil {
		return "", err
	}

	if kind == PtrObject {
		return "[Ljava/lang/Object;", nil
	}

	return "[" + primitiveDescriptorForPointerKind(kind), nil
}

func primitiveDescriptorForPointerKind(kind PointerRuntimeKind) string {
	switch kind {
	case PtrChar:
		return "B" // chars travel as signed bytes in the base array; unsigned reads mask at load sites
	case PtrBool:
		return "Z"
	case PtrShort:
		return "S"
	case PtrInt:
		return "I"
	case PtrLong:
		return "J"
	case PtrFloat:
		return "F"
	case PtrDouble:
		return "D"
	default:
		return "Ljava/lang/Object;"
	}
}

// ValueTagForArrayElement is an alias of Category scoped to array element
// types, named to match spec.md's instruction-selection vocabulary for
// X{aload,astore}.
func ValueTagForArrayElement(arrayType *cminorast.TypeSpecifier) (ValueCategory, error) {
	elemDesc, err := ArrayElementDescriptor(arrayType)
	if err != nil {
		return "", err
	}
	return categoryFromDescriptor(elemDesc), nil
}

// Mapper owns the method-descriptor cache. One Mapper is created per
// compilation unit and dropped at the end of it; it is never a modifiable
// singleton (spec.md §9, "global state is scoped").
type Mapper struct {
	methodDescCache map[string]string
}

// NewMapper returns a Mapper with an empty method-descriptor cache.
func NewMapper() *Mapper { return &Mapper{methodDescCache: map[string]string{}} }

// MethodDescriptor builds "(param1param2...[Ljava/lang/Object;?)ret" for f,
// appending a trailing boxed-varargs array descriptor for variadic
// functions. Cached by (ClassName, Name) identity.
func (m *Mapper) MethodDescriptor(f *cminorast.FunctionDeclaration) (string, error) {
	key := f.ClassName + "." + f.Name
	if cached, ok := m.methodDescCache[key]; ok {
		return cached, nil
	}

	desc := "("
	for _, param := range f.Params {
		paramDesc, err := Descriptor(param.Type)
		if err != nil {
			return "", fmt.Errorf("jvmtypes: parameter %q of %s: %w", param.Name, key, err)
		}
		desc += paramDesc
	}
	if f.IsVariadic {
		desc += "[Ljava/lang/Object;"
	}
	desc += ")"

	retDesc, err := Descriptor(f.Return)
	if err != nil {
		return "", fmt.Errorf("jvmtypes: return type of %s: %w", key, err)
	}
	desc += retDesc

	m.methodDescCache[key] = desc
	return desc, nil
}

// IsReference reports whether a descriptor denotes a JVM reference type.
// Invariant tying Category and Descriptor together: IsReference(Descriptor(T))
// iff Category(T) == CategoryReference.
func IsReference(descriptor string) bool {
	return len(descriptor) > 0 && (descriptor[0] == 'L' || descriptor[0] == '[')
}
