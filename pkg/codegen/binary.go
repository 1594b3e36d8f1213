package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
	"cminor.dev/jvmgen/pkg/lowering"
)

func (c *funcCtx) genUnary(node cminorast.UnaryExpr) (jvmtypes.ValueCategory, error) {
	operandType, _ := c.staticTypeOf(node.Operand)
	cat, err := c.genExpr(node.Operand)
	if err != nil {
		return "", err
	}

	switch node.Op {
	case cminorast.UnaryNeg:
		if err := c.cb.UnaryNeg(cat); err != nil {
			return "", err
		}
		return cat, nil
	case cminorast.UnaryNot:
		if operandType != nil && operandType.Kind == cminorast.KindBool {
			return c.genLogicalNot()
		}
		return c.genBitwiseNot(cat)
	default:
		return "", fmt.Errorf("codegen: unhandled unary operator %q", node.Op)
	}
}

func (c *funcCtx) genBitwiseNot(cat jvmtypes.ValueCategory) (jvmtypes.ValueCategory, error) {
	switch cat {
	case jvmtypes.CategoryInt:
		c.cb.Iconst(-1)
	case jvmtypes.CategoryLong:
		c.cb.Lconst(-1)
	default:
		return "", fmt.Errorf("codegen: bitwise not has no %s variant", cat)
	}
	if err := c.cb.BinaryArith(codebuilder.ArithXor, cat); err != nil {
		return "", err
	}
	return cat, nil
}

// genLogicalNot flips an int truth value to a strict 0/1, matching ! on a
// bool-typed operand.
func (c *funcCtx) genLogicalNot() (jvmtypes.ValueCategory, error) {
	falseLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	if err := c.cb.JumpIf(codebuilder.CondIfEq, falseLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(0)
	if err := c.cb.Jump(endLabel); err != nil {
		return "", err
	}
	if err := c.cb.PlaceLabel(falseLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(1)
	if err := c.cb.PlaceLabel(endLabel); err != nil {
		return "", err
	}
	return jvmtypes.CategoryInt, nil
}

// normalizeBool collapses any nonzero int on top of stack down to a
// strict 1, leaving 0 as 0 — needed after a short-circuit && / || operand
// whose value is itself a wider truth expression than a plain comparison.
func (c *funcCtx) normalizeBool() error {
	falseLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	if err := c.cb.JumpIf(codebuilder.CondIfEq, falseLabel); err != nil {
		return err
	}
	c.cb.Iconst(1)
	if err := c.cb.Jump(endLabel); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(falseLabel); err != nil {
		return err
	}
	c.cb.Iconst(0)
	return c.cb.PlaceLabel(endLabel)
}

func (c *funcCtx) genBinary(node cminorast.BinaryExpr) (jvmtypes.ValueCategory, error) {
	if node.Op == cminorast.BinLogAnd || node.Op == cminorast.BinLogOr {
		return c.genLogical(node)
	}

	lhsType, lhsTypeErr := c.staticTypeOf(node.Lhs)
	rhsType, rhsTypeErr := c.staticTypeOf(node.Rhs)
	lhsIsPtr := lhsTypeErr == nil && lhsType.Kind == cminorast.KindPointer
	rhsIsPtr := rhsTypeErr == nil && rhsType.Kind == cminorast.KindPointer

	if lhsIsPtr || rhsIsPtr {
		switch node.Op {
		case cminorast.BinAdd, cminorast.BinSub:
			return c.genPointerArith(node, lhsType, rhsType, lhsIsPtr, rhsIsPtr)
		case cminorast.BinEq, cminorast.BinNe:
			ptrType := lhsType
			if !lhsIsPtr {
				ptrType = rhsType
			}
			return c.genPointerCompare(node, ptrType)
		default:
			return "", fmt.Errorf("codegen: operator %q is not defined on pointer operands", node.Op)
		}
	}

	lhsCat, err := c.genExpr(node.Lhs)
	if err != nil {
		return "", err
	}
	rhsCat, err := c.genExpr(node.Rhs)
	if err != nil {
		return "", err
	}
	if lhsCat != rhsCat {
		return "", fmt.Errorf("codegen: binary %q operand categories differ (%s vs %s)", node.Op, lhsCat, rhsCat)
	}
	cat := lhsCat
	unsigned := lhsType != nil && lhsType.Unsigned

	switch node.Op {
	case cminorast.BinEq, cminorast.BinNe, cminorast.BinLt, cminorast.BinLe, cminorast.BinGt, cminorast.BinGe:
		return c.genComparison(node.Op, cat, unsigned)
	case cminorast.BinAdd:
		return cat, c.cb.BinaryArith(codebuilder.ArithAdd, cat)
	case cminorast.BinSub:
		return cat, c.cb.BinaryArith(codebuilder.ArithSub, cat)
	case cminorast.BinMul:
		return cat, c.cb.BinaryArith(codebuilder.ArithMul, cat)
	case cminorast.BinDiv:
		if unsigned && (cat == jvmtypes.CategoryInt || cat == jvmtypes.CategoryLong) {
			op := lowering.UnsignedDivInt
			if cat == jvmtypes.CategoryLong {
				op = lowering.UnsignedDivLong
			}
			return cat, c.low.EmitUnsignedBinary(op, cat)
		}
		return cat, c.cb.BinaryArith(codebuilder.ArithDiv, cat)
	case cminorast.BinMod:
		if unsigned && (cat == jvmtypes.CategoryInt || cat == jvmtypes.CategoryLong) {
			op := lowering.UnsignedRemInt
			if cat == jvmtypes.CategoryLong {
				op = lowering.UnsignedRemLong
			}
			return cat, c.low.EmitUnsignedBinary(op, cat)
		}
		return cat, c.cb.BinaryArith(codebuilder.ArithRem, cat)
	case cminorast.BinAnd:
		return cat, c.cb.BinaryArith(codebuilder.ArithAnd, cat)
	case cminorast.BinOr:
		return cat, c.cb.BinaryArith(codebuilder.ArithOr, cat)
	case cminorast.BinXor:
		return cat, c.cb.BinaryArith(codebuilder.ArithXor, cat)
	case cminorast.BinShl:
		return cat, c.cb.BinaryArith(codebuilder.ArithShl, cat)
	case cminorast.BinShr:
		if unsigned {
			return cat, c.cb.BinaryArith(codebuilder.ArithUshr, cat)
		}
		return cat, c.cb.BinaryArith(codebuilder.ArithShr, cat)
	default:
		return "", fmt.Errorf("codegen: unhandled binary operator %q", node.Op)
	}
}

// genLogical implements && / || with short-circuit evaluation: the rhs is
// only evaluated when the lhs didn't already decide the result.
func (c *funcCtx) genLogical(node cminorast.BinaryExpr) (jvmtypes.ValueCategory, error) {
	lhsCat, err := c.genExpr(node.Lhs)
	if err != nil {
		return "", err
	}
	if lhsCat != jvmtypes.CategoryInt {
		return "", fmt.Errorf("codegen: %q operand must be int-categoried, got %s", node.Op, lhsCat)
	}

	shortLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	shortValue := int32(0)
	cond := codebuilder.CondIfEq
	if node.Op == cminorast.BinLogOr {
		shortValue = 1
		cond = codebuilder.CondIfNe
	}

	if err := c.cb.JumpIf(cond, shortLabel); err != nil {
		return "", err
	}
	rhsCat, err := c.genExpr(node.Rhs)
	if err != nil {
		return "", err
	}
	if rhsCat != jvmtypes.CategoryInt {
		return "", fmt.Errorf("codegen: %q operand must be int-categoried, got %s", node.Op, rhsCat)
	}
	if err := c.normalizeBool(); err != nil {
		return "", err
	}
	if err := c.cb.Jump(endLabel); err != nil {
		return "", err
	}
	if err := c.cb.PlaceLabel(shortLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(shortValue)
	if err := c.cb.PlaceLabel(endLabel); err != nil {
		return "", err
	}
	return jvmtypes.CategoryInt, nil
}

var ifCond = map[cminorast.BinaryOp]codebuilder.JumpCond{
	cminorast.BinEq: codebuilder.CondIfEq, cminorast.BinNe: codebuilder.CondIfNe,
	cminorast.BinLt: codebuilder.CondIfLt, cminorast.BinLe: codebuilder.CondIfLe,
	cminorast.BinGt: codebuilder.CondIfGt, cminorast.BinGe: codebuilder.CondIfGe,
}

var icmpCond = map[cminorast.BinaryOp]codebuilder.JumpCond{
	cminorast.BinEq: codebuilder.CondICmpEq, cminorast.BinNe: codebuilder.CondICmpNe,
	cminorast.BinLt: codebuilder.CondICmpLt, cminorast.BinLe: codebuilder.CondICmpLe,
	cminorast.BinGt: codebuilder.CondICmpGt, cminorast.BinGe: codebuilder.CondICmpGe,
}

var acmpCond = map[cminorast.BinaryOp]codebuilder.JumpCond{
	cminorast.BinEq: codebuilder.CondACmpEq, cminorast.BinNe: codebuilder.CondACmpNe,
}

// genComparison dispatches a two-operand (already pushed) comparison to
// the JVM shape its category needs: direct if_icmpXX for plain int, a
// cmp-then-compare-to-zero sequence for long/float/double, the unsigned
// helper for unsigned int/long, or if_acmpXX for bare references.
func (c *funcCtx) genComparison(op cminorast.BinaryOp, cat jvmtypes.ValueCategory, unsigned bool) (jvmtypes.ValueCategory, error) {
	if unsigned && (cat == jvmtypes.CategoryInt || cat == jvmtypes.CategoryLong) {
		uop := lowering.UnsignedCmpInt
		if cat == jvmtypes.CategoryLong {
			uop = lowering.UnsignedCmpLong
		}
		if err := c.low.EmitUnsignedBinary(uop, cat); err != nil {
			return "", err
		}
		return c.compareResultToZero(op)
	}

	switch cat {
	case jvmtypes.CategoryInt:
		cond, ok := icmpCond[op]
		if !ok {
			return "", fmt.Errorf("codegen: operator %q is not a comparison", op)
		}
		return c.branchToBool(cond)
	case jvmtypes.CategoryReference:
		cond, ok := acmpCond[op]
		if !ok {
			return "", fmt.Errorf("codegen: operator %q is not defined on references", op)
		}
		return c.branchToBool(cond)
	default: // Long, Float, Double
		nanBiasPositive := op == cminorast.BinLt || op == cminorast.BinLe
		if err := c.cb.Compare(cat, nanBiasPositive); err != nil {
			return "", err
		}
		return c.compareResultToZero(op)
	}
}

// compareResultToZero compares an int cmp-style result (-1/0/1) against
// zero per op.
func (c *funcCtx) compareResultToZero(op cminorast.BinaryOp) (jvmtypes.ValueCategory, error) {
	cond, ok := ifCond[op]
	if !ok {
		return "", fmt.Errorf("codegen: operator %q is not a comparison", op)
	}
	return c.branchToBool(cond)
}

// branchToBool consumes the operand(s) cond's family expects and leaves a
// strict 0/1 int reflecting whether the branch would have been taken.
func (c *funcCtx) branchToBool(cond codebuilder.JumpCond) (jvmtypes.ValueCategory, error) {
	trueLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	if err := c.cb.JumpIf(cond, trueLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(0)
	if err := c.cb.Jump(endLabel); err != nil {
		return "", err
	}
	if err := c.cb.PlaceLabel(trueLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(1)
	if err := c.cb.PlaceLabel(endLabel); err != nil {
		return "", err
	}
	return jvmtypes.CategoryInt, nil
}

// genPointerArith implements p+n, n+p and p-n (pointer +/- a scalar
// offset) and p-q (pointer difference); evaluation order is reassociated
// to always push the pointer first, matching pkg/lowering's expected
// [ptr, delta] stack shape (spec.md §4.4: addition order is unspecified
// in C anyway).
func (c *funcCtx) genPointerArith(node cminorast.BinaryExpr, lhsType, rhsType *cminorast.TypeSpecifier, lhsIsPtr, rhsIsPtr bool) (jvmtypes.ValueCategory, error) {
	if node.Op == cminorast.BinSub && lhsIsPtr && rhsIsPtr {
		if _, err := c.genExpr(node.Lhs); err != nil {
			return "", err
		}
		if _, err := c.genExpr(node.Rhs); err != nil {
			return "", err
		}
		if err := c.low.EmitPtrDiff(lhsType); err != nil {
			return "", err
		}
		return jvmtypes.CategoryInt, nil
	}

	var ptrType *cminorast.TypeSpecifier
	var deltaCat jvmtypes.ValueCategory
	var err error

	if lhsIsPtr {
		ptrType = lhsType
		if _, err = c.genExpr(node.Lhs); err != nil {
			return "", err
		}
		deltaCat, err = c.genExpr(node.Rhs)
		if err != nil {
			return "", err
		}
		if node.Op == cminorast.BinSub {
			if err := c.cb.UnaryNeg(deltaCat); err != nil {
				return "", err
			}
		}
	} else {
		if node.Op != cminorast.BinAdd {
			return "", fmt.Errorf("codegen: %v - pointer is not a valid expression", lhsType)
		}
		ptrType = rhsType
		if _, err = c.genExpr(node.Rhs); err != nil {
			return "", err
		}
		deltaCat, err = c.genExpr(node.Lhs)
		if err != nil {
			return "", err
		}
	}

	if err := c.low.EmitPtrAdd(ptrType, deltaCat); err != nil {
		return "", err
	}
	return jvmtypes.CategoryReference, nil
}

func isNullLiteral(e cminorast.Expression) bool {
	_, ok := e.(cminorast.NullLiteral)
	return ok
}

// genPointerCompare implements p == q / p != q. A NULL-literal operand
// only needs p's base reference tested for nullity (every non-null
// pointer this package constructs has a non-null base, by construction of
// ptr_create/ptr_add); comparing two real pointer expressions needs both
// the base reference and the int offset to agree, since cloning on every
// read means two reads of the same variable are distinct wrapper objects
// (spec.md §4.4).
func (c *funcCtx) genPointerCompare(node cminorast.BinaryExpr, ptrType *cminorast.TypeSpecifier) (jvmtypes.ValueCategory, error) {
	if isNullLiteral(node.Rhs) {
		return c.genPointerNullCompare(node.Lhs, ptrType, node.Op)
	}
	if isNullLiteral(node.Lhs) {
		return c.genPointerNullCompare(node.Rhs, ptrType, node.Op)
	}

	if _, err := c.genExpr(node.Lhs); err != nil {
		return "", err
	}
	tmpL := c.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := c.cb.Store(tmpL, jvmtypes.CategoryReference); err != nil {
		return "", err
	}
	if _, err := c.genExpr(node.Rhs); err != nil {
		return "", err
	}
	tmpR := c.cb.AllocateLocal(jvmtypes.CategoryReference)
	if err := c.cb.Store(tmpR, jvmtypes.CategoryReference); err != nil {
		return "", err
	}

	falseLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)

	c.cb.Load(tmpL, jvmtypes.CategoryReference)
	if err := c.low.EmitPtrGetBase(ptrType); err != nil {
		return "", err
	}
	c.cb.Load(tmpR, jvmtypes.CategoryReference)
	if err := c.low.EmitPtrGetBase(ptrType); err != nil {
		return "", err
	}
	if err := c.cb.JumpIf(codebuilder.CondACmpNe, falseLabel); err != nil {
		return "", err
	}

	c.cb.Load(tmpL, jvmtypes.CategoryReference)
	if err := c.low.EmitPtrGetOffset(ptrType); err != nil {
		return "", err
	}
	c.cb.Load(tmpR, jvmtypes.CategoryReference)
	if err := c.low.EmitPtrGetOffset(ptrType); err != nil {
		return "", err
	}
	if err := c.cb.JumpIf(codebuilder.CondICmpNe, falseLabel); err != nil {
		return "", err
	}

	equalValue, unequalValue := int32(1), int32(0)
	if node.Op == cminorast.BinNe {
		equalValue, unequalValue = 0, 1
	}
	c.cb.Iconst(equalValue)
	if err := c.cb.Jump(endLabel); err != nil {
		return "", err
	}
	if err := c.cb.PlaceLabel(falseLabel); err != nil {
		return "", err
	}
	c.cb.Iconst(unequalValue)
	if err := c.cb.PlaceLabel(endLabel); err != nil {
		return "", err
	}
	return jvmtypes.CategoryInt, nil
}

func (c *funcCtx) genPointerNullCompare(e cminorast.Expression, ptrType *cminorast.TypeSpecifier, op cminorast.BinaryOp) (jvmtypes.ValueCategory, error) {
	if _, err := c.genExpr(e); err != nil {
		return "", err
	}
	if err := c.low.EmitPtrGetBase(ptrType); err != nil {
		return "", err
	}
	cond := codebuilder.CondNull
	if op == cminorast.BinNe {
		cond = codebuilder.CondNonNull
	}
	return c.branchToBool(cond)
}

func (c *funcCtx) genTernary(node cminorast.TernaryExpr) (jvmtypes.ValueCategory, error) {
	condCat, err := c.genExpr(node.Cond)
	if err != nil {
		return "", err
	}
	if condCat != jvmtypes.CategoryInt {
		return "", fmt.Errorf("codegen: ternary condition must be int-categoried, got %s", condCat)
	}

	elseLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	if err := c.cb.JumpIf(codebuilder.CondIfEq, elseLabel); err != nil {
		return "", err
	}
	thenCat, err := c.genExpr(node.Then)
	if err != nil {
		return "", err
	}
	if err := c.cb.Jump(endLabel); err != nil {
		return "", err
	}
	if err := c.cb.PlaceLabel(elseLabel); err != nil {
		return "", err
	}
	elseCat, err := c.genExpr(node.Else)
	if err != nil {
		return "", err
	}
	if thenCat != elseCat {
		return "", fmt.Errorf("codegen: ternary branches disagree on category (%s vs %s)", thenCat, elseCat)
	}
	if err := c.cb.PlaceLabel(endLabel); err != nil {
		return "", err
	}
	return thenCat, nil
}
