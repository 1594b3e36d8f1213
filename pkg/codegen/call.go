package codegen

import (
	"fmt"
	"strings"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// genCall dispatches a call expression to one of four shapes: the
// rejected malloc/realloc family, the inline-expanded calloc, an
// attribute-bound JVM intrinsic, or an ordinary static call to another
// function in this translation unit.
func (c *funcCtx) genCall(node cminorast.CallExpr) (jvmtypes.ValueCategory, error) {
	fn := node.Callee

	switch fn.Name {
	case "malloc", "realloc":
		return "", fmt.Errorf("%s: %w", fn.Name, ErrMallocRejected)
	case "calloc":
		return c.genCallocCall(node)
	}

	if len(fn.Attributes) > 0 {
		return c.genAttributeCall(node, fn.Attributes[0])
	}
	return c.genOrdinaryCall(node, fn)
}

// genCallocCall implements calloc(n, sizeof(T)): n is pushed as an
// ordinary expression, T is read statically off the second argument
// without emitting any code for it (sizeof never has a runtime value of
// its own here).
func (c *funcCtx) genCallocCall(node cminorast.CallExpr) (jvmtypes.ValueCategory, error) {
	if len(node.Args) != 2 {
		return "", fmt.Errorf("calloc: %w", ErrArgCountMismatch)
	}
	sizeofArg, ok := node.Args[1].(cminorast.SizeofExpr)
	if !ok {
		return "", fmt.Errorf("codegen: calloc's second argument must be sizeof(T)")
	}
	if _, err := c.genExpr(node.Args[0]); err != nil {
		return "", err
	}
	if err := c.low.EmitCalloc(sizeofArg.Type); err != nil {
		return "", err
	}
	return jvmtypes.CategoryReference, nil
}

// genOrdinaryCall implements a call to another Cminor function in this
// class: every method here is static, so there is never a receiver to
// push. Struct/array/pointer arguments already arrive as independent
// copies because genExpr clones aliasable rvalues at every read site;
// call-by-value falls out of that for free.
func (c *funcCtx) genOrdinaryCall(node cminorast.CallExpr, fn *cminorast.FunctionDeclaration) (jvmtypes.ValueCategory, error) {
	fixed := len(fn.Params)
	if fn.IsVariadic {
		if len(node.Args) < fixed {
			return "", fmt.Errorf("%s: %w", fn.Name, ErrArgCountMismatch)
		}
	} else if len(node.Args) != fixed {
		return "", fmt.Errorf("%s: %w", fn.Name, ErrArgCountMismatch)
	}

	argCats := make([]jvmtypes.ValueCategory, 0, fixed+1)
	for i := 0; i < fixed; i++ {
		cat, err := c.genExpr(node.Args[i])
		if err != nil {
			return "", err
		}
		argCats = append(argCats, cat)
	}

	if fn.IsVariadic {
		tailCats := make([]jvmtypes.ValueCategory, 0, len(node.Args)-fixed)
		for i := fixed; i < len(node.Args); i++ {
			cat, err := c.genExpr(node.Args[i])
			if err != nil {
				return "", err
			}
			tailCats = append(tailCats, cat)
		}
		if err := c.low.EmitPackVarargs(tailCats); err != nil {
			return "", err
		}
		argCats = append(argCats, jvmtypes.CategoryReference)
	}

	desc, err := c.gen.mapper.MethodDescriptor(fn)
	if err != nil {
		return "", err
	}

	var retCat jvmtypes.ValueCategory
	if fn.Return.Kind != cminorast.KindVoid {
		retCat, err = jvmtypes.Category(fn.Return)
		if err != nil {
			return "", err
		}
	}

	if err := c.cb.Invoke(codebuilder.InvokeStatic, fn.ClassName, fn.Name, desc, argCats, retCat); err != nil {
		return "", err
	}
	return retCat, nil
}

// genAttributeCall turns a call to a body-less, attribute-bound
// declaration into the single JVM instruction the attribute names
// (spec.md §6's attribute surface table).
func (c *funcCtx) genAttributeCall(node cminorast.CallExpr, attr cminorast.Attribute) (jvmtypes.ValueCategory, error) {
	switch attr.Kind {
	case cminorast.AttrGetStatic:
		return c.genGetStaticCall(attr)
	case cminorast.AttrGetField:
		return c.genGetFieldCall(node, attr)
	case cminorast.AttrNew:
		c.cb.New(attr.Owner)
		return jvmtypes.CategoryReference, nil
	case cminorast.AttrInvokeStatic:
		return c.genInvokeCall(node, codebuilder.InvokeStatic, attr)
	case cminorast.AttrInvokeVirtual:
		return c.genInvokeCall(node, codebuilder.InvokeVirtual, attr)
	case cminorast.AttrInvokeSpecial:
		return c.genInvokeSpecialCall(node, attr)
	case cminorast.AttrArrayLength:
		return c.genArrayLengthCall(node)
	case cminorast.AttrAALoad:
		return c.genAALoadCall(node)
	default:
		return "", fmt.Errorf("%s: %w", attr.Kind, ErrUnknownAttribute)
	}
}

// genGetStaticCall discards every call argument; get_static declarations
// are zero-arg field reads by convention.
func (c *funcCtx) genGetStaticCall(attr cminorast.Attribute) (jvmtypes.ValueCategory, error) {
	cat := categoryOfFieldDescriptor(attr.Descriptor)
	c.cb.Getstatic(attr.Owner, attr.Name, attr.Descriptor, cat)
	return cat, nil
}

func (c *funcCtx) genGetFieldCall(node cminorast.CallExpr, attr cminorast.Attribute) (jvmtypes.ValueCategory, error) {
	if node.Receiver == nil {
		return "", fmt.Errorf("get_field(%s.%s): receiver is required", attr.Owner, attr.Name)
	}
	if _, err := c.genExpr(node.Receiver); err != nil {
		return "", err
	}
	if err := c.cb.Checkcast(attr.Owner); err != nil {
		return "", err
	}
	cat := categoryOfFieldDescriptor(attr.Descriptor)
	if err := c.cb.Getfield(attr.Owner, attr.Name, attr.Descriptor, cat); err != nil {
		return "", err
	}
	return cat, nil
}

// genInvokeCall implements invoke_static and invoke_virtual: virtual
// calls push and checkcast the receiver first, static calls have none.
func (c *funcCtx) genInvokeCall(node cminorast.CallExpr, kind codebuilder.InvokeKind, attr cminorast.Attribute) (jvmtypes.ValueCategory, error) {
	if kind == codebuilder.InvokeVirtual {
		if node.Receiver == nil {
			return "", fmt.Errorf("invoke_virtual(%s.%s): receiver is required", attr.Owner, attr.Name)
		}
		if _, err := c.genExpr(node.Receiver); err != nil {
			return "", err
		}
		if err := c.cb.Checkcast(attr.Owner); err != nil {
			return "", err
		}
	}

	argCats, err := c.genInvokeArgs(node.Args, attr.Descriptor)
	if err != nil {
		return "", err
	}
	retCat := returnCategoryOf(attr.Descriptor)
	if err := c.cb.Invoke(kind, attr.Owner, attr.Name, attr.Descriptor, argCats, retCat); err != nil {
		return "", err
	}
	return retCat, nil
}

// genInvokeSpecialCall covers both a plain invokespecial against an
// already-live receiver and the `new T(args)` constructor idiom, where
// the receiver is itself a call to an AttrNew-attributed declaration: the
// constructor sequence is new; dup; args...; invokespecial, leaving the
// dup'd reference as the whole expression's value once invokespecial
// consumes the other copy as its receiver.
func (c *funcCtx) genInvokeSpecialCall(node cminorast.CallExpr, attr cminorast.Attribute) (jvmtypes.ValueCategory, error) {
	switch {
	case isNewCall(node.Receiver):
		ctorCall := node.Receiver.(cminorast.CallExpr)
		newAttr := ctorCall.Callee.Attributes[0]
		c.cb.New(newAttr.Owner)
		if err := c.cb.DupValue(); err != nil {
			return "", err
		}
	case node.Receiver != nil:
		if _, err := c.genExpr(node.Receiver); err != nil {
			return "", err
		}
		if err := c.cb.Checkcast(attr.Owner); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("invoke_special(%s.%s): receiver is required", attr.Owner, attr.Name)
	}

	argCats, err := c.genInvokeArgs(node.Args, attr.Descriptor)
	if err != nil {
		return "", err
	}
	if err := c.cb.Invoke(codebuilder.InvokeSpecial, attr.Owner, attr.Name, attr.Descriptor, argCats, ""); err != nil {
		return "", err
	}
	return jvmtypes.CategoryReference, nil
}

func isNewCall(e cminorast.Expression) bool {
	call, ok := e.(cminorast.CallExpr)
	return ok && len(call.Callee.Attributes) > 0 && call.Callee.Attributes[0].Kind == cminorast.AttrNew
}

func (c *funcCtx) genArrayLengthCall(node cminorast.CallExpr) (jvmtypes.ValueCategory, error) {
	if len(node.Args) != 1 {
		return "", fmt.Errorf("arraylength: %w", ErrArgCountMismatch)
	}
	if _, err := c.genExpr(node.Args[0]); err != nil {
		return "", err
	}
	if err := c.cb.Arraylength(); err != nil {
		return "", err
	}
	return jvmtypes.CategoryInt, nil
}

func (c *funcCtx) genAALoadCall(node cminorast.CallExpr) (jvmtypes.ValueCategory, error) {
	if len(node.Args) != 2 {
		return "", fmt.Errorf("aaload: %w", ErrArgCountMismatch)
	}
	if _, err := c.genExpr(node.Args[0]); err != nil {
		return "", err
	}
	idxCat, err := c.genExpr(node.Args[1])
	if err != nil {
		return "", err
	}
	if idxCat == jvmtypes.CategoryLong {
		if err := c.cb.Convert(codebuilder.ConvL2I); err != nil {
			return "", err
		}
	}
	if err := c.cb.ArrayLoad(jvmtypes.CategoryReference, codebuilder.NarrowNone); err != nil {
		return "", err
	}
	return jvmtypes.CategoryReference, nil
}

// genInvokeArgs pushes each argument, inserting a checkcast to the
// parameter's own class wherever the descriptor names a reference type
// (spec.md §6: "necessary checkcasts ... on object-typed arguments").
func (c *funcCtx) genInvokeArgs(args []cminorast.Expression, desc string) ([]jvmtypes.ValueCategory, error) {
	paramDescs := parseParamDescriptors(desc)
	if len(args) != len(paramDescs) {
		return nil, fmt.Errorf("%w", ErrArgCountMismatch)
	}
	cats := make([]jvmtypes.ValueCategory, len(args))
	for i, arg := range args {
		cat, err := c.genExpr(arg)
		if err != nil {
			return nil, err
		}
		if cat == jvmtypes.CategoryReference && len(paramDescs[i]) > 0 && paramDescs[i][0] == 'L' {
			if err := c.cb.Checkcast(internalNameFromFieldDescriptor(paramDescs[i])); err != nil {
				return nil, err
			}
		}
		cats[i] = cat
	}
	return cats, nil
}

// parseParamDescriptors splits a method descriptor's "(...)ret" parameter
// section into its individual field descriptors, in order.
func parseParamDescriptors(desc string) []string {
	i := 1 // skip leading '('
	var params []string
	for i < len(desc) && desc[i] != ')' {
		start := i
		for i < len(desc) && desc[i] == '[' {
			i++
		}
		if i < len(desc) && desc[i] == 'L' {
			for i < len(desc) && desc[i] != ';' {
				i++
			}
			i++
		} else {
			i++
		}
		params = append(params, desc[start:i])
	}
	return params
}

func categoryOfFieldDescriptor(desc string) jvmtypes.ValueCategory {
	switch desc {
	case "J":
		return jvmtypes.CategoryLong
	case "D":
		return jvmtypes.CategoryDouble
	case "F":
		return jvmtypes.CategoryFloat
	case "I":
		return jvmtypes.CategoryInt
	default:
		return jvmtypes.CategoryReference
	}
}

// returnCategoryOf returns "" for a void method descriptor, matching
// Invoke's own "retCat == \"\" means don't push anything" convention.
func returnCategoryOf(desc string) jvmtypes.ValueCategory {
	retDesc := desc[strings.LastIndex(desc, ")")+1:]
	if retDesc == "V" {
		return ""
	}
	return categoryOfFieldDescriptor(retDesc)
}

func internalNameFromFieldDescriptor(desc string) string {
	if len(desc) >= 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}
