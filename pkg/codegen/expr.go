package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// genExpr emits e, leaving exactly one value of the returned category on
// the operand stack (spec.md §4.5's "responsibilities per expression
// kind").
func (c *funcCtx) genExpr(e cminorast.Expression) (jvmtypes.ValueCategory, error) {
	switch node := e.(type) {
	case cminorast.IdentExpr:
		d, err := c.resolveIdent(node.Name)
		if err != nil {
			return "", err
		}
		return c.loadIdent(d)

	case cminorast.IntLiteral:
		return c.genIntLiteral(node)

	case cminorast.FloatLiteral:
		if node.Type.Kind == cminorast.KindFloat {
			c.cb.Fconst(float32(node.Value))
			return jvmtypes.CategoryFloat, nil
		}
		c.cb.Dconst(node.Value)
		return jvmtypes.CategoryDouble, nil

	case cminorast.NullLiteral:
		if err := c.pushNullLiteral(node.Type); err != nil {
			return "", err
		}
		return jvmtypes.CategoryReference, nil

	case cminorast.UnaryExpr:
		return c.genUnary(node)

	case cminorast.BinaryExpr:
		return c.genBinary(node)

	case cminorast.AssignExpr:
		return c.genAssign(node)

	case cminorast.IncDecExpr:
		return c.genIncDec(node)

	case cminorast.IndexExpr:
		return c.genIndexLoad(node)

	case cminorast.MemberExpr:
		return c.genMemberLoad(node)

	case cminorast.AddrOfExpr:
		return c.genAddrOf(node)

	case cminorast.DerefExpr:
		return c.genDeref(node)

	case cminorast.CastExpr:
		return c.genCast(node)

	case cminorast.TernaryExpr:
		return c.genTernary(node)

	case cminorast.CallExpr:
		return c.genCall(node)

	case cminorast.VaStartExpr:
		return "", c.genVaStart(node)

	case cminorast.VaArgExpr:
		return c.genVaArg(node)

	case cminorast.VaEndExpr:
		return "", c.genVaEnd(node)

	case cminorast.SizeofExpr:
		return "", fmt.Errorf("codegen: sizeof() may only appear as calloc's second argument")

	default:
		return "", fmt.Errorf("codegen: unhandled expression node %T", e)
	}
}

func (c *funcCtx) genIntLiteral(node cminorast.IntLiteral) (jvmtypes.ValueCategory, error) {
	if node.Type.Kind == cminorast.KindLong {
		c.cb.Lconst(node.Value)
		return jvmtypes.CategoryLong, nil
	}
	c.cb.Iconst(int32(node.Value))
	return jvmtypes.CategoryInt, nil
}

// apSlotOf resolves a va_list expression (always a plain local identifier
// in practice) to its local slot.
func (c *funcCtx) apSlotOf(e cminorast.Expression) (int, error) {
	ident, ok := e.(cminorast.IdentExpr)
	if !ok {
		return 0, fmt.Errorf("codegen: va_list argument must be a plain identifier")
	}
	d, err := c.resolveIdent(ident.Name)
	if err != nil {
		return 0, err
	}
	return d.Slot, nil
}

func (c *funcCtx) genVaStart(node cminorast.VaStartExpr) error {
	apSlot, err := c.apSlotOf(node.Ap)
	if err != nil {
		return err
	}
	return c.low.EmitVaStart(c.fn.VarargsSlot, apSlot)
}

func (c *funcCtx) genVaArg(node cminorast.VaArgExpr) (jvmtypes.ValueCategory, error) {
	apSlot, err := c.apSlotOf(node.Ap)
	if err != nil {
		return "", err
	}
	if err := c.low.EmitVaArg(apSlot, node.Type); err != nil {
		return "", err
	}
	return jvmtypes.Category(node.Type)
}

func (c *funcCtx) genVaEnd(node cminorast.VaEndExpr) error {
	return c.low.EmitVaEnd()
}

func (c *funcCtx) genAddrOf(node cminorast.AddrOfExpr) (jvmtypes.ValueCategory, error) {
	ident, ok := node.Operand.(cminorast.IdentExpr)
	if !ok {
		if _, isMember := node.Operand.(cminorast.MemberExpr); isMember {
			return "", fmt.Errorf("&(...): %w", ErrAddressOfField)
		}
		return "", fmt.Errorf("codegen: unsupported address-of operand %T", node.Operand)
	}
	d, err := c.resolveIdent(ident.Name)
	if err != nil {
		return "", err
	}
	if err := c.addrOfIdent(d); err != nil {
		return "", err
	}
	return jvmtypes.CategoryReference, nil
}

func (c *funcCtx) genDeref(node cminorast.DerefExpr) (jvmtypes.ValueCategory, error) {
	ptrType, err := c.exprPointerType(node.Operand)
	if err != nil {
		return "", err
	}
	if ptrType.Elem.Kind == cminorast.KindVoid {
		return "", ErrVoidPointerArithmetic
	}
	if _, err := c.genExpr(node.Operand); err != nil {
		return "", err
	}
	if err := c.low.EmitPtrDeref(ptrType); err != nil {
		return "", err
	}
	if err := c.cloneIfAliasable(ptrType.Elem); err != nil {
		return "", err
	}
	return jvmtypes.Category(ptrType.Elem)
}

// exprPointerType returns the pointer TypeSpecifier of an
// already-typed expression without emitting any code, needed wherever a
// lowering routine must know T before the pointer value itself is
// pushed. Array identifiers decay to a pointer-to-element type.
func (c *funcCtx) exprPointerType(e cminorast.Expression) (*cminorast.TypeSpecifier, error) {
	switch node := e.(type) {
	case cminorast.IdentExpr:
		d, err := c.resolveIdent(node.Name)
		if err != nil {
			return nil, err
		}
		if d.Type.Kind == cminorast.KindArray {
			return pointerTo(d.Type.Elem), nil
		}
		return d.Type, nil
	case cminorast.IndexExpr, cminorast.MemberExpr, cminorast.CallExpr, cminorast.CastExpr, cminorast.DerefExpr:
		return c.staticTypeOf(node)
	default:
		return c.staticTypeOf(e)
	}
}

// staticTypeOf recovers an expression's static type for the handful of
// shapes exprPointerType and genIndexLoad need to inspect ahead of
// emission. This mirrors the type information semantic analysis already
// attached to the AST upstream; it is not re-deriving types C5 wasn't
// handed.
func (c *funcCtx) staticTypeOf(e cminorast.Expression) (*cminorast.TypeSpecifier, error) {
	switch node := e.(type) {
	case cminorast.IdentExpr:
		d, err := c.resolveIdent(node.Name)
		if err != nil {
			return nil, err
		}
		return d.Type, nil
	case cminorast.CastExpr:
		return node.Type, nil
	case cminorast.CallExpr:
		return node.Callee.Return, nil
	case cminorast.MemberExpr:
		baseType, err := c.staticTypeOf(node.Base)
		if err != nil {
			return nil, err
		}
		field, ok := baseType.Fields.Get(node.Field)
		if !ok {
			return nil, fmt.Errorf("codegen: %s has no field %q", baseType.Name, node.Field)
		}
		return field.Type, nil
	case cminorast.IndexExpr:
		baseType, err := c.staticTypeOf(node.Base)
		if err != nil {
			return nil, err
		}
		return baseType.Elem, nil
	case cminorast.DerefExpr:
		baseType, err := c.exprPointerType(node.Operand)
		if err != nil {
			return nil, err
		}
		return baseType.Elem, nil
	default:
		return nil, fmt.Errorf("codegen: cannot recover a static type for %T", e)
	}
}

func (c *funcCtx) genCast(node cminorast.CastExpr) (jvmtypes.ValueCategory, error) {
	// Array-to-pointer decay: casting an array identifier to T* emits
	// ptr_create(array, 0) rather than any numeric conversion.
	if arr, ok := node.Operand.(cminorast.IdentExpr); ok && node.Type.Kind == cminorast.KindPointer {
		d, err := c.resolveIdent(arr.Name)
		if err == nil && d.Type.Kind == cminorast.KindArray {
			if err := c.loadArrayRef(d); err != nil {
				return "", err
			}
			c.cb.Iconst(0)
			if err := c.low.EmitPtrCreate(node.Type); err != nil {
				return "", err
			}
			return jvmtypes.CategoryReference, nil
		}
	}

	fromCat, err := c.genExpr(node.Operand)
	if err != nil {
		return "", err
	}
	toCat, err := jvmtypes.Category(node.Type)
	if err != nil {
		return "", err
	}

	if fromCat == toCat {
		return c.castNarrowIfNeeded(node.Type, toCat)
	}

	kind, ok := numericConversion(fromCat, toCat)
	if !ok {
		return "", fmt.Errorf("codegen: unsupported cast from %s to %s", fromCat, toCat)
	}
	if err := c.cb.Convert(kind); err != nil {
		return "", err
	}
	return c.castNarrowIfNeeded(node.Type, toCat)
}

// castNarrowIfNeeded applies i2b/i2s plus the unsigned mask when casting
// down to char/short (spec.md §4.5).
func (c *funcCtx) castNarrowIfNeeded(t *cminorast.TypeSpecifier, cat jvmtypes.ValueCategory) (jvmtypes.ValueCategory, error) {
	switch t.Kind {
	case cminorast.KindChar:
		if err := c.cb.Convert(codebuilder.ConvI2B); err != nil {
			return "", err
		}
	case cminorast.KindShort:
		if err := c.cb.Convert(codebuilder.ConvI2S); err != nil {
			return "", err
		}
	default:
		return cat, nil
	}
	if t.Unsigned {
		if err := c.low.MaskUnsignedAfterLoad(t); err != nil {
			return "", err
		}
	}
	return jvmtypes.CategoryInt, nil
}

func numericConversion(from, to jvmtypes.ValueCategory) (codebuilder.ConvertKind, bool) {
	table := map[[2]jvmtypes.ValueCategory]codebuilder.ConvertKind{
		{jvmtypes.CategoryInt, jvmtypes.CategoryLong}:    codebuilder.ConvI2L,
		{jvmtypes.CategoryInt, jvmtypes.CategoryFloat}:   codebuilder.ConvI2F,
		{jvmtypes.CategoryInt, jvmtypes.CategoryDouble}:  codebuilder.ConvI2D,
		{jvmtypes.CategoryLong, jvmtypes.CategoryInt}:    codebuilder.ConvL2I,
		{jvmtypes.CategoryLong, jvmtypes.CategoryFloat}:  codebuilder.ConvL2F,
		{jvmtypes.CategoryLong, jvmtypes.CategoryDouble}: codebuilder.ConvL2D,
		{jvmtypes.CategoryFloat, jvmtypes.CategoryInt}:   codebuilder.ConvF2I,
		{jvmtypes.CategoryFloat, jvmtypes.CategoryLong}:  codebuilder.ConvF2L,
		{jvmtypes.CategoryFloat, jvmtypes.CategoryDouble}: codebuilder.ConvF2D,
		{jvmtypes.CategoryDouble, jvmtypes.CategoryInt}:  codebuilder.ConvD2I,
		{jvmtypes.CategoryDouble, jvmtypes.CategoryLong}: codebuilder.ConvD2L,
		{jvmtypes.CategoryDouble, jvmtypes.CategoryFloat}: codebuilder.ConvD2F,
	}
	kind, ok := table[[2]jvmtypes.ValueCategory{from, to}]
	return kind, ok
}

// loadArrayRef pushes the REFERENCE to an array-typed declaration's
// backing JVM array (its whole value, not an element) — the "base" half
// of array-to-pointer decay.
func (c *funcCtx) loadArrayRef(d *cminorast.Declaration) error {
	cat := jvmtypes.CategoryReference
	if d.NeedsHeapLift {
		if err := c.loadWrapperRef(d); err != nil {
			return err
		}
		c.cb.Iconst(0)
		return c.cb.ArrayLoad(cat, codebuilder.NarrowNone)
	}
	if d.Kind == cminorast.VarGlobal {
		desc, err := jvmtypes.Descriptor(d.Type)
		if err != nil {
			return err
		}
		c.cb.Getstatic(c.gen.className, d.Name, desc, cat)
		return nil
	}
	c.cb.Load(d.Slot, cat)
	return nil
}
