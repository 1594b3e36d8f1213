package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// This file covers assignment and ++/-- codegen. Every non-identifier
// target stages its address components through fresh local slots rather
// than juggling the operand stack: pkg/codebuilder exposes dup/dup2 and
// dup_x1/dup2_x1 but nothing deep enough to keep an array/struct/pointer
// store's value around on a 3-deep stack, so temp locals do the same job
// (mirrors storeIdent's heap-lift branch and EmitPtrAdd's own use of temp
// locals in pkg/lowering).

var compoundArith = map[cminorast.AssignOp]codebuilder.ArithOp{
	cminorast.AssignAdd: codebuilder.ArithAdd,
	cminorast.AssignSub: codebuilder.ArithSub,
	cminorast.AssignMul: codebuilder.ArithMul,
	cminorast.AssignDiv: codebuilder.ArithDiv,
	cminorast.AssignMod: codebuilder.ArithRem,
	cminorast.AssignAnd: codebuilder.ArithAnd,
	cminorast.AssignOr:  codebuilder.ArithOr,
	cminorast.AssignXor: codebuilder.ArithXor,
	cminorast.AssignShl: codebuilder.ArithShl,
	cminorast.AssignShr: codebuilder.ArithShr,
}

func (c *funcCtx) genAssign(node cminorast.AssignExpr) (jvmtypes.ValueCategory, error) {
	switch lhs := node.Lhs.(type) {
	case cminorast.IdentExpr:
		return c.genAssignIdent(lhs, node)
	case cminorast.MemberExpr:
		return c.genAssignMember(lhs, node)
	case cminorast.IndexExpr:
		return c.genAssignIndex(lhs, node)
	case cminorast.DerefExpr:
		return c.genAssignDeref(lhs, node)
	default:
		return "", fmt.Errorf("codegen: %T is not assignable", node.Lhs)
	}
}

// combine applies a compound-assignment delta to whatever raw value is
// already on the stack (read half already emitted by the caller),
// leaving the new value on the stack. Plain "=" is handled by the caller
// directly, never reaching here.
func (c *funcCtx) combine(node cminorast.AssignExpr, t *cminorast.TypeSpecifier, cat jvmtypes.ValueCategory) (jvmtypes.ValueCategory, error) {
	if t.Kind == cminorast.KindPointer {
		if node.Op != cminorast.AssignAdd && node.Op != cminorast.AssignSub {
			return "", fmt.Errorf("codegen: operator %q is not defined on pointer operands", node.Op)
		}
		deltaCat, err := c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
		if node.Op == cminorast.AssignSub {
			if err := c.cb.UnaryNeg(deltaCat); err != nil {
				return "", err
			}
		}
		if err := c.low.EmitPtrAdd(t, deltaCat); err != nil {
			return "", err
		}
		return jvmtypes.CategoryReference, nil
	}

	arithOp, ok := compoundArith[node.Op]
	if !ok {
		return "", fmt.Errorf("codegen: unhandled compound-assignment operator %q", node.Op)
	}
	rhsCat, err := c.genExpr(node.Rhs)
	if err != nil {
		return "", err
	}
	if rhsCat != cat {
		return "", fmt.Errorf("codegen: compound assignment operand categories differ (%s vs %s)", cat, rhsCat)
	}
	if node.Op == cminorast.AssignShl || node.Op == cminorast.AssignShr {
		if node.Op == cminorast.AssignShr && t.Unsigned {
			arithOp = codebuilder.ArithUshr
		}
	}
	if err := c.cb.BinaryArith(arithOp, cat); err != nil {
		return "", err
	}
	return c.castNarrowIfNeeded(t, cat)
}

func (c *funcCtx) genAssignIdent(lhs cminorast.IdentExpr, node cminorast.AssignExpr) (jvmtypes.ValueCategory, error) {
	d, err := c.resolveIdent(lhs.Name)
	if err != nil {
		return "", err
	}
	cat, err := jvmtypes.Category(d.Type)
	if err != nil {
		return "", err
	}

	if node.Op == cminorast.AssignPlain {
		rhsCat, err := c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
		cat = rhsCat
	} else {
		if _, err := c.loadIdentRaw(d); err != nil {
			return "", err
		}
		cat, err = c.combine(node, d.Type, cat)
		if err != nil {
			return "", err
		}
	}

	tmp := c.cb.AllocateLocal(cat)
	if err := c.cb.Store(tmp, cat); err != nil {
		return "", err
	}
	c.cb.Load(tmp, cat)
	if err := c.storeIdent(d); err != nil {
		return "", err
	}
	c.cb.Load(tmp, cat)
	return cat, nil
}

func (c *funcCtx) genAssignMember(lhs cminorast.MemberExpr, node cminorast.AssignExpr) (jvmtypes.ValueCategory, error) {
	className, fieldName, desc, cat, fieldType, err := c.genMemberAddr(lhs)
	if err != nil {
		return "", err
	}
	tmpObj := c.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := c.cb.Store(tmpObj, jvmtypes.CategoryReference); err != nil {
		return "", err
	}

	if node.Op == cminorast.AssignPlain {
		cat, err = c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
	} else {
		c.cb.Load(tmpObj, jvmtypes.CategoryReference)
		if err := c.cb.Getfield(className, fieldName, desc, cat); err != nil {
			return "", err
		}
		cat, err = c.combine(node, fieldType, cat)
		if err != nil {
			return "", err
		}
	}

	tmpVal := c.cb.AllocateLocal(cat)
	if err := c.cb.Store(tmpVal, cat); err != nil {
		return "", err
	}
	c.cb.Load(tmpObj, jvmtypes.CategoryReference)
	c.cb.Load(tmpVal, cat)
	if err := c.cb.Putfield(className, fieldName, desc, cat); err != nil {
		return "", err
	}
	c.cb.Load(tmpVal, cat)
	return cat, nil
}

func (c *funcCtx) genAssignIndex(lhs cminorast.IndexExpr, node cminorast.AssignExpr) (jvmtypes.ValueCategory, error) {
	isPointer, elemType, err := c.genIndexBase(lhs.Base)
	if err != nil {
		return "", err
	}
	baseCat := jvmtypes.CategoryReference
	tmpBase := c.cb.AllocateLocal(baseCat)
	if err := c.cb.Store(tmpBase, baseCat); err != nil {
		return "", err
	}

	idxCat, err := c.genExpr(lhs.Index)
	if err != nil {
		return "", err
	}
	if idxCat == jvmtypes.CategoryLong {
		if err := c.cb.Convert(codebuilder.ConvL2I); err != nil {
			return "", err
		}
	}
	tmpIdx := c.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := c.cb.Store(tmpIdx, jvmtypes.CategoryInt); err != nil {
		return "", err
	}

	elemCat, err := jvmtypes.Category(elemType)
	if err != nil {
		return "", err
	}

	if node.Op != cminorast.AssignPlain && isPointer && elemType.Kind == cminorast.KindStruct {
		return "", fmt.Errorf("%T: %w", lhs, ErrCompoundAssignToPtrSubscript)
	}

	if node.Op == cminorast.AssignPlain {
		elemCat, err = c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
	} else {
		c.cb.Load(tmpBase, baseCat)
		c.cb.Load(tmpIdx, jvmtypes.CategoryInt)
		if isPointer {
			if err := c.low.EmitPtrSubscript(pointerTo(elemType)); err != nil {
				return "", err
			}
		} else {
			if err := c.cb.ArrayLoad(elemCat, narrowKindFor(elemType)); err != nil {
				return "", err
			}
		}
		elemCat, err = c.combine(node, elemType, elemCat)
		if err != nil {
			return "", err
		}
	}

	tmpVal := c.cb.AllocateLocal(elemCat)
	if err := c.cb.Store(tmpVal, elemCat); err != nil {
		return "", err
	}

	c.cb.Load(tmpBase, baseCat)
	c.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	c.cb.Load(tmpVal, elemCat)
	if isPointer {
		if err := c.low.EmitPtrStoreSubscript(pointerTo(elemType)); err != nil {
			return "", err
		}
	} else {
		if err := c.cb.ArrayStore(elemCat, narrowKindFor(elemType)); err != nil {
			return "", err
		}
	}
	c.cb.Load(tmpVal, elemCat)
	return elemCat, nil
}

func (c *funcCtx) genAssignDeref(lhs cminorast.DerefExpr, node cminorast.AssignExpr) (jvmtypes.ValueCategory, error) {
	ptrType, err := c.exprPointerType(lhs.Operand)
	if err != nil {
		return "", err
	}
	if ptrType.Elem.Kind == cminorast.KindVoid {
		return "", ErrVoidPointerArithmetic
	}
	ptrCat := jvmtypes.CategoryReference
	if _, err := c.genExpr(lhs.Operand); err != nil {
		return "", err
	}
	tmpPtr := c.cb.AllocateLocal(ptrCat)
	if err := c.cb.Store(tmpPtr, ptrCat); err != nil {
		return "", err
	}

	elemType := ptrType.Elem
	elemCat, err := jvmtypes.Category(elemType)
	if err != nil {
		return "", err
	}

	if node.Op == cminorast.AssignPlain {
		elemCat, err = c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
	} else {
		c.cb.Load(tmpPtr, ptrCat)
		if err := c.low.EmitPtrDeref(ptrType); err != nil {
			return "", err
		}
		elemCat, err = c.combine(node, elemType, elemCat)
		if err != nil {
			return "", err
		}
	}

	tmpVal := c.cb.AllocateLocal(elemCat)
	if err := c.cb.Store(tmpVal, elemCat); err != nil {
		return "", err
	}

	c.cb.Load(tmpPtr, ptrCat)
	c.cb.Load(tmpVal, elemCat)
	if err := c.low.EmitPtrStore(ptrType); err != nil {
		return "", err
	}
	c.cb.Load(tmpVal, elemCat)
	return elemCat, nil
}

// applyDelta adds (or subtracts) one unit of t's natural increment to the
// raw value already on the stack, leaving the new value on the stack.
func (c *funcCtx) applyDelta(t *cminorast.TypeSpecifier, cat jvmtypes.ValueCategory, op cminorast.IncDecOp) (jvmtypes.ValueCategory, error) {
	if t.Kind == cminorast.KindPointer {
		delta := int32(1)
		if op == cminorast.DecOp {
			delta = -1
		}
		c.cb.Iconst(delta)
		if err := c.low.EmitPtrAdd(t, jvmtypes.CategoryInt); err != nil {
			return "", err
		}
		return jvmtypes.CategoryReference, nil
	}

	switch cat {
	case jvmtypes.CategoryInt:
		c.cb.Iconst(1)
	case jvmtypes.CategoryLong:
		c.cb.Lconst(1)
	case jvmtypes.CategoryFloat:
		c.cb.Fconst(1)
	case jvmtypes.CategoryDouble:
		c.cb.Dconst(1)
	default:
		return "", fmt.Errorf("codegen: %s has no ++/-- form", cat)
	}
	arithOp := codebuilder.ArithAdd
	if op == cminorast.DecOp {
		arithOp = codebuilder.ArithSub
	}
	if err := c.cb.BinaryArith(arithOp, cat); err != nil {
		return "", err
	}
	return c.castNarrowIfNeeded(t, cat)
}

// genIncDec implements both prefix and postfix ++/--: the expression's
// own value is the NEW value for prefix, the OLD value for postfix
// (spec.md §4.5).
func (c *funcCtx) genIncDec(node cminorast.IncDecExpr) (jvmtypes.ValueCategory, error) {
	switch operand := node.Operand.(type) {
	case cminorast.IdentExpr:
		return c.incDecIdent(operand, node)
	case cminorast.MemberExpr:
		return c.incDecMember(operand, node)
	case cminorast.IndexExpr:
		return c.incDecIndex(operand, node)
	case cminorast.DerefExpr:
		return c.incDecDeref(operand, node)
	default:
		return "", fmt.Errorf("codegen: %T is not a valid ++/-- operand", node.Operand)
	}
}

func (c *funcCtx) incDecIdent(operand cminorast.IdentExpr, node cminorast.IncDecExpr) (jvmtypes.ValueCategory, error) {
	d, err := c.resolveIdent(operand.Name)
	if err != nil {
		return "", err
	}
	cat, err := c.loadIdentRaw(d)
	if err != nil {
		return "", err
	}
	tmpOld := c.cb.AllocateLocal(cat)
	if err := c.cb.Store(tmpOld, cat); err != nil {
		return "", err
	}
	c.cb.Load(tmpOld, cat)
	newCat, err := c.applyDelta(d.Type, cat, node.Op)
	if err != nil {
		return "", err
	}
	tmpNew := c.cb.AllocateLocal(newCat)
	if err := c.cb.Store(tmpNew, newCat); err != nil {
		return "", err
	}
	c.cb.Load(tmpNew, newCat)
	if err := c.storeIdent(d); err != nil {
		return "", err
	}
	if node.Prefix {
		c.cb.Load(tmpNew, newCat)
	} else {
		c.cb.Load(tmpOld, cat)
	}
	return cat, nil
}

func (c *funcCtx) incDecMember(operand cminorast.MemberExpr, node cminorast.IncDecExpr) (jvmtypes.ValueCategory, error) {
	className, fieldName, desc, cat, fieldType, err := c.genMemberAddr(operand)
	if err != nil {
		return "", err
	}
	tmpObj := c.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := c.cb.Store(tmpObj, jvmtypes.CategoryReference); err != nil {
		return "", err
	}
	c.cb.Load(tmpObj, jvmtypes.CategoryReference)
	if err := c.cb.Getfield(className, fieldName, desc, cat); err != nil {
		return "", err
	}
	tmpOld := c.cb.AllocateLocal(cat)
	if err := c.cb.Store(tmpOld, cat); err != nil {
		return "", err
	}
	c.cb.Load(tmpOld, cat)
	newCat, err := c.applyDelta(fieldType, cat, node.Op)
	if err != nil {
		return "", err
	}
	tmpNew := c.cb.AllocateLocal(newCat)
	if err := c.cb.Store(tmpNew, newCat); err != nil {
		return "", err
	}
	c.cb.Load(tmpObj, jvmtypes.CategoryReference)
	c.cb.Load(tmpNew, newCat)
	if err := c.cb.Putfield(className, fieldName, desc, cat); err != nil {
		return "", err
	}
	if node.Prefix {
		c.cb.Load(tmpNew, newCat)
	} else {
		c.cb.Load(tmpOld, cat)
	}
	return cat, nil
}

func (c *funcCtx) incDecIndex(operand cminorast.IndexExpr, node cminorast.IncDecExpr) (jvmtypes.ValueCategory, error) {
	isPointer, elemType, err := c.genIndexBase(operand.Base)
	if err != nil {
		return "", err
	}
	baseCat := jvmtypes.CategoryReference
	tmpBase := c.cb.AllocateLocal(baseCat)
	if err := c.cb.Store(tmpBase, baseCat); err != nil {
		return "", err
	}
	idxCat, err := c.genExpr(operand.Index)
	if err != nil {
		return "", err
	}
	if idxCat == jvmtypes.CategoryLong {
		if err := c.cb.Convert(codebuilder.ConvL2I); err != nil {
			return "", err
		}
	}
	tmpIdx := c.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := c.cb.Store(tmpIdx, jvmtypes.CategoryInt); err != nil {
		return "", err
	}

	elemCat, err := jvmtypes.Category(elemType)
	if err != nil {
		return "", err
	}
	c.cb.Load(tmpBase, baseCat)
	c.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	if isPointer {
		if err := c.low.EmitPtrSubscript(pointerTo(elemType)); err != nil {
			return "", err
		}
	} else {
		if err := c.cb.ArrayLoad(elemCat, narrowKindFor(elemType)); err != nil {
			return "", err
		}
	}
	tmpOld := c.cb.AllocateLocal(elemCat)
	if err := c.cb.Store(tmpOld, elemCat); err != nil {
		return "", err
	}
	c.cb.Load(tmpOld, elemCat)
	newCat, err := c.applyDelta(elemType, elemCat, node.Op)
	if err != nil {
		return "", err
	}
	tmpNew := c.cb.AllocateLocal(newCat)
	if err := c.cb.Store(tmpNew, newCat); err != nil {
		return "", err
	}

	c.cb.Load(tmpBase, baseCat)
	c.cb.Load(tmpIdx, jvmtypes.CategoryInt)
	c.cb.Load(tmpNew, newCat)
	if isPointer {
		if err := c.low.EmitPtrStoreSubscript(pointerTo(elemType)); err != nil {
			return "", err
		}
	} else {
		if err := c.cb.ArrayStore(elemCat, narrowKindFor(elemType)); err != nil {
			return "", err
		}
	}
	if node.Prefix {
		c.cb.Load(tmpNew, newCat)
	} else {
		c.cb.Load(tmpOld, elemCat)
	}
	return elemCat, nil
}

func (c *funcCtx) incDecDeref(operand cminorast.DerefExpr, node cminorast.IncDecExpr) (jvmtypes.ValueCategory, error) {
	ptrType, err := c.exprPointerType(operand.Operand)
	if err != nil {
		return "", err
	}
	if ptrType.Elem.Kind == cminorast.KindVoid {
		return "", ErrVoidPointerArithmetic
	}
	ptrCat := jvmtypes.CategoryReference
	if _, err := c.genExpr(operand.Operand); err != nil {
		return "", err
	}
	tmpPtr := c.cb.AllocateLocal(ptrCat)
	if err := c.cb.Store(tmpPtr, ptrCat); err != nil {
		return "", err
	}

	elemType := ptrType.Elem
	c.cb.Load(tmpPtr, ptrCat)
	if err := c.low.EmitPtrDeref(ptrType); err != nil {
		return "", err
	}
	elemCat, err := jvmtypes.Category(elemType)
	if err != nil {
		return "", err
	}
	tmpOld := c.cb.AllocateLocal(elemCat)
	if err := c.cb.Store(tmpOld, elemCat); err != nil {
		return "", err
	}
	c.cb.Load(tmpOld, elemCat)
	newCat, err := c.applyDelta(elemType, elemCat, node.Op)
	if err != nil {
		return "", err
	}
	tmpNew := c.cb.AllocateLocal(newCat)
	if err := c.cb.Store(tmpNew, newCat); err != nil {
		return "", err
	}

	c.cb.Load(tmpPtr, ptrCat)
	c.cb.Load(tmpNew, newCat)
	if err := c.low.EmitPtrStore(ptrType); err != nil {
		return "", err
	}
	if node.Prefix {
		c.cb.Load(tmpNew, newCat)
	} else {
		c.cb.Load(tmpOld, elemCat)
	}
	return elemCat, nil
}
