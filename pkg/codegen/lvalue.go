package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// This file holds the "addressing" half of expression codegen: pushing a
// raw reference to a struct/array/pointer so a caller can index, select a
// field, or store through it, without the value-semantics cloning genExpr
// applies when the same expression is evaluated as an ordinary rvalue.
// genAssign and genIncDec build their lvalue targets on top of these; the
// public genIndexLoad/genMemberLoad wrap them with the clone every other
// read gets (spec.md §8 property 6).

// genObjectRef pushes a struct/union-typed expression's raw object
// reference (no deep copy) and returns its type, for use as the base of a
// field access that must observe/mutate the real object.
func (c *funcCtx) genObjectRef(e cminorast.Expression) (*cminorast.TypeSpecifier, error) {
	switch node := e.(type) {
	case cminorast.IdentExpr:
		d, err := c.resolveIdent(node.Name)
		if err != nil {
			return nil, err
		}
		if _, err := c.loadIdentRaw(d); err != nil {
			return nil, err
		}
		return d.Type, nil
	case cminorast.MemberExpr:
		_, fieldType, err := c.genMemberRaw(node)
		if err != nil {
			return nil, err
		}
		return fieldType, nil
	case cminorast.IndexExpr:
		_, elemType, err := c.genIndexRaw(node)
		if err != nil {
			return nil, err
		}
		return elemType, nil
	case cminorast.DerefExpr:
		ptrType, err := c.exprPointerType(node.Operand)
		if err != nil {
			return nil, err
		}
		if _, err := c.genExpr(node.Operand); err != nil {
			return nil, err
		}
		if err := c.low.EmitPtrDeref(ptrType); err != nil {
			return nil, err
		}
		return ptrType.Elem, nil
	default:
		cat, err := c.genExpr(e)
		if err != nil {
			return nil, err
		}
		if cat != jvmtypes.CategoryReference {
			return nil, fmt.Errorf("codegen: %T is not object-shaped", e)
		}
		return c.staticTypeOf(e)
	}
}

// loadIdentRaw is loadIdent without the final cloneIfAliasable: used
// wherever a declaration's current value is about to be indexed, selected
// into, or otherwise consumed immediately rather than handed out as an
// independent rvalue.
func (c *funcCtx) loadIdentRaw(d *cminorast.Declaration) (jvmtypes.ValueCategory, error) {
	cat, err := jvmtypes.Category(d.Type)
	if err != nil {
		return "", err
	}
	if d.NeedsHeapLift {
		if err := c.loadWrapperRef(d); err != nil {
			return "", err
		}
		c.cb.Iconst(0)
		if err := c.cb.ArrayLoad(cat, narrowKindFor(d.Type)); err != nil {
			return "", err
		}
		return cat, nil
	}
	if d.Kind == cminorast.VarGlobal {
		desc, err := jvmtypes.Descriptor(d.Type)
		if err != nil {
			return "", err
		}
		c.cb.Getstatic(c.gen.className, d.Name, desc, cat)
		return cat, nil
	}
	c.cb.Load(d.Slot, cat)
	return cat, nil
}

// genMemberAddr pushes obj.field's containing object reference and
// returns the metadata a Getfield/Putfield against it needs.
func (c *funcCtx) genMemberAddr(node cminorast.MemberExpr) (className, fieldName, desc string, cat jvmtypes.ValueCategory, fieldType *cminorast.TypeSpecifier, err error) {
	baseType, err := c.genObjectRef(node.Base)
	if err != nil {
		return "", "", "", "", nil, err
	}
	field, ok := baseType.Fields.Get(node.Field)
	if !ok {
		return "", "", "", "", nil, fmt.Errorf("codegen: %s has no field %q", baseType.Name, node.Field)
	}
	desc, err = jvmtypes.Descriptor(field.Type)
	if err != nil {
		return "", "", "", "", nil, err
	}
	cat, err = jvmtypes.Category(field.Type)
	if err != nil {
		return "", "", "", "", nil, err
	}
	return baseType.Name, node.Field, desc, cat, field.Type, nil
}

// genMemberRaw pushes obj.field's raw value (no clone) and returns its
// type, for use as a base of further indexing/selection or as the read
// half of a compound assignment/increment.
func (c *funcCtx) genMemberRaw(node cminorast.MemberExpr) (jvmtypes.ValueCategory, *cminorast.TypeSpecifier, error) {
	className, fieldName, desc, cat, fieldType, err := c.genMemberAddr(node)
	if err != nil {
		return "", nil, err
	}
	if err := c.cb.Getfield(className, fieldName, desc, cat); err != nil {
		return "", nil, err
	}
	return cat, fieldType, nil
}

// genMemberLoad implements obj.field as an ordinary rvalue: the raw load
// plus the independent-copy clone every aliasable read gets.
func (c *funcCtx) genMemberLoad(node cminorast.MemberExpr) (jvmtypes.ValueCategory, error) {
	cat, fieldType, err := c.genMemberRaw(node)
	if err != nil {
		return "", err
	}
	if err := c.cloneIfAliasable(fieldType); err != nil {
		return "", err
	}
	return cat, nil
}

// genIndexBase pushes the array reference (true array base) or pointer
// value (pointer base) that node indexes into, and reports which. Covers
// plain identifiers, struct fields, and nested array-of-array indexing.
func (c *funcCtx) genIndexBase(e cminorast.Expression) (isPointer bool, elemType *cminorast.TypeSpecifier, err error) {
	switch node := e.(type) {
	case cminorast.IdentExpr:
		d, err := c.resolveIdent(node.Name)
		if err != nil {
			return false, nil, err
		}
		switch d.Type.Kind {
		case cminorast.KindArray:
			if err := c.loadArrayRef(d); err != nil {
				return false, nil, err
			}
			return false, d.Type.Elem, nil
		case cminorast.KindPointer:
			if _, err := c.loadIdentRaw(d); err != nil {
				return false, nil, err
			}
			return true, d.Type.Elem, nil
		default:
			return false, nil, fmt.Errorf("codegen: %s is not subscriptable", node.Name)
		}
	case cminorast.MemberExpr:
		_, fieldType, err := c.genMemberRaw(node)
		if err != nil {
			return false, nil, err
		}
		return subscriptShape(fieldType)
	case cminorast.IndexExpr:
		_, innerType, err := c.genIndexRaw(node)
		if err != nil {
			return false, nil, err
		}
		return subscriptShape(innerType)
	case cminorast.DerefExpr:
		ptrType, err := c.exprPointerType(node.Operand)
		if err != nil {
			return false, nil, err
		}
		if _, err := c.genExpr(node.Operand); err != nil {
			return false, nil, err
		}
		if err := c.low.EmitPtrDeref(ptrType); err != nil {
			return false, nil, err
		}
		return subscriptShape(ptrType.Elem)
	default:
		return false, nil, fmt.Errorf("codegen: %T is not subscriptable", e)
	}
}

func subscriptShape(t *cminorast.TypeSpecifier) (bool, *cminorast.TypeSpecifier, error) {
	switch t.Kind {
	case cminorast.KindArray:
		return false, t.Elem, nil
	case cminorast.KindPointer:
		return true, t.Elem, nil
	default:
		return false, nil, fmt.Errorf("codegen: %s is not subscriptable", t.Kind)
	}
}

// genIndexRaw pushes base[index]'s raw value (no clone) and returns the
// element's type.
func (c *funcCtx) genIndexRaw(node cminorast.IndexExpr) (jvmtypes.ValueCategory, *cminorast.TypeSpecifier, error) {
	isPointer, elemType, err := c.genIndexBase(node.Base)
	if err != nil {
		return "", nil, err
	}
	idxCat, err := c.genExpr(node.Index)
	if err != nil {
		return "", nil, err
	}
	if idxCat == jvmtypes.CategoryLong {
		if err := c.cb.Convert(codebuilder.ConvL2I); err != nil {
			return "", nil, err
		}
	}
	elemCat, err := jvmtypes.Category(elemType)
	if err != nil {
		return "", nil, err
	}
	if isPointer {
		if err := c.low.EmitPtrSubscript(pointerTo(elemType)); err != nil {
			return "", nil, err
		}
		return elemCat, elemType, nil
	}
	if err := c.cb.ArrayLoad(elemCat, narrowKindFor(elemType)); err != nil {
		return "", nil, err
	}
	return elemCat, elemType, nil
}

// genIndexLoad implements base[index] as an ordinary rvalue.
func (c *funcCtx) genIndexLoad(node cminorast.IndexExpr) (jvmtypes.ValueCategory, error) {
	cat, elemType, err := c.genIndexRaw(node)
	if err != nil {
		return "", err
	}
	if err := c.cloneIfAliasable(elemType); err != nil {
		return "", err
	}
	return cat, nil
}
