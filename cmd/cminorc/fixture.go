package main

import (
	"encoding/json"
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/utils"
)

// This file decodes the JSON fixture format cmd/cminorc reads in place of
// a real Cminor front end (spec.md's lexer/parser/semantic-analysis pass
// is explicitly out of scope). A fixture is the serialized form of one
// already-resolved cminorast.TranslationUnit: types carry no dangling
// typedef names, every identifier is already a name the function/struct
// tables below can resolve, and every slot is pre-assigned.
//
// Statement and Expression are marker interfaces with over a dozen
// concrete shapes apiece, so encoding/json's ordinary struct tags can't
// round-trip them on their own: a "kind" discriminator field picks the
// concrete Go type to decode into, the same tagged-union shape
// pkg/jack's own stdlib.json ABI fixtures use for subroutine signatures.

type typeFixture struct {
	Kind     cminorast.Kind   `json:"kind"`
	Unsigned bool             `json:"unsigned"`
	Elem     *typeFixture     `json:"elem"`
	Len      int              `json:"len"`
	Name     string           `json:"name"`
	Fields   []fieldFixture   `json:"fields"`
}

type fieldFixture struct {
	Name string         `json:"name"`
	Decl declFixture    `json:"decl"`
}

type declFixture struct {
	Name          string      `json:"name"`
	Type          typeFixture `json:"type"`
	VarKind       string      `json:"var_kind"`
	Slot          int         `json:"slot"`
	NeedsHeapLift bool        `json:"needs_heap_lift"`
	ClassName     string      `json:"class_name"`
}

type attributeFixture struct {
	Kind       string `json:"kind"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
}

type funcFixture struct {
	Name        string             `json:"name"`
	ClassName   string             `json:"class_name"`
	Params      []declFixture      `json:"params"`
	Return      typeFixture        `json:"return"`
	IsVariadic  bool               `json:"is_variadic"`
	VarargsSlot int                `json:"varargs_slot"`
	Body        []json.RawMessage `json:"body"`
	Attributes  []attributeFixture `json:"attributes"`
}

type structFixture struct {
	Name string      `json:"name"`
	Type typeFixture `json:"type"`
}

type translationUnitFixture struct {
	ClassName string          `json:"class_name"`
	Globals   []declFixture   `json:"globals"`
	Structs   []structFixture `json:"structs"`
	Functions []funcFixture   `json:"functions"`
}

func toType(t typeFixture) *cminorast.TypeSpecifier {
	out := &cminorast.TypeSpecifier{
		Kind:     t.Kind,
		Unsigned: t.Unsigned,
		Len:      t.Len,
		Name:     t.Name,
	}
	if t.Elem != nil {
		out.Elem = toType(*t.Elem)
	}
	if len(t.Fields) > 0 {
		entries := make([]utils.MapEntry[string, *cminorast.Declaration], len(t.Fields))
		for i, f := range t.Fields {
			entries[i] = utils.MapEntry[string, *cminorast.Declaration]{Key: f.Name, Value: toDecl(f.Decl)}
		}
		out.Fields = utils.NewOrderedMapFromList(entries)
	}
	return out
}

func toDecl(d declFixture) *cminorast.Declaration {
	return &cminorast.Declaration{
		Name:          d.Name,
		Type:          toType(d.Type),
		Kind:          cminorast.VarKind(d.VarKind),
		Slot:          d.Slot,
		NeedsHeapLift: d.NeedsHeapLift,
		ClassName:     d.ClassName,
	}
}

func toAttribute(a attributeFixture) cminorast.Attribute {
	return cminorast.Attribute{
		Kind:       cminorast.AttributeKind(a.Kind),
		Owner:      a.Owner,
		Name:       a.Name,
		Descriptor: a.Descriptor,
	}
}

// decodeTranslationUnit parses one fixture file's bytes into a resolved
// cminorast.TranslationUnit. Function bodies are decoded in a second pass
// once every function's (possibly body-less, attribute-bound) declaration
// is registered, since a CallExpr.Callee is a direct pointer to the
// FunctionDeclaration it invokes rather than a name looked up at codegen
// time.
func decodeTranslationUnit(raw []byte) (*cminorast.TranslationUnit, error) {
	var fx translationUnitFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decoding translation unit: %w", err)
	}

	tu := &cminorast.TranslationUnit{ClassName: fx.ClassName}

	for _, g := range fx.Globals {
		tu.Globals = append(tu.Globals, *toDecl(g))
	}

	if len(fx.Structs) > 0 {
		entries := make([]utils.MapEntry[string, *cminorast.TypeSpecifier], len(fx.Structs))
		for i, s := range fx.Structs {
			entries[i] = utils.MapEntry[string, *cminorast.TypeSpecifier]{Key: s.Name, Value: toType(s.Type)}
		}
		tu.Structs = utils.NewOrderedMapFromList(entries)
	}

	tu.Functions = make([]cminorast.FunctionDeclaration, len(fx.Functions))
	byName := map[string]*cminorast.FunctionDeclaration{}
	for i, f := range fx.Functions {
		params := make([]cminorast.Declaration, len(f.Params))
		for j, p := range f.Params {
			params[j] = *toDecl(p)
		}
		attrs := make([]cminorast.Attribute, len(f.Attributes))
		for j, a := range f.Attributes {
			attrs[j] = toAttribute(a)
		}
		tu.Functions[i] = cminorast.FunctionDeclaration{
			Name:        f.Name,
			ClassName:   f.ClassName,
			Params:      params,
			Return:      toType(f.Return),
			IsVariadic:  f.IsVariadic,
			VarargsSlot: f.VarargsSlot,
			Attributes:  attrs,
		}
		byName[f.Name] = &tu.Functions[i]
	}

	dec := &decoder{byName: byName}
	for i, f := range fx.Functions {
		if f.Body == nil {
			continue
		}
		body, err := dec.stmtList(f.Body)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", f.Name, err)
		}
		tu.Functions[i].Body = body
	}

	return tu, nil
}
