package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// pointerTo builds the synthetic pointer TypeSpecifier for elem, used
// wherever this package needs to hand pkg/lowering a T* view of a plain
// T (address-of, array-to-pointer decay, heap-lift wrapper access).
func pointerTo(elem *cminorast.TypeSpecifier) *cminorast.TypeSpecifier {
	return &cminorast.TypeSpecifier{Kind: cminorast.KindPointer, Elem: elem}
}

// wrapperArrayDescriptor is the JVM descriptor of a declaration's
// heap-lift wrapper array: a 1-element array of its own type.
func wrapperArrayDescriptor(t *cminorast.TypeSpecifier) (string, error) {
	desc, err := jvmtypes.Descriptor(t)
	if err != nil {
		return "", err
	}
	return "[" + desc, nil
}

// loadIdent pushes d's current value, resolving heap-lift wrapping and
// static field storage, and cloning struct/array/pointer values so every
// read yields an independent value (spec.md §8 property 6).
func (c *funcCtx) loadIdent(d *cminorast.Declaration) (jvmtypes.ValueCategory, error) {
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
	} else if d.Kind == cminorast.VarGlobal {
		desc, err := jvmtypes.Descriptor(d.Type)
		if err != nil {
			return "", err
		}
		c.cb.Getstatic(c.gen.className, d.Name, desc, cat)
	} else {
		c.cb.Load(d.Slot, cat)
	}

	if err := c.cloneIfAliasable(d.Type); err != nil {
		return "", err
	}
	return cat, nil
}

// loadWrapperRef pushes the REFERENCE to d's heap-lift wrapper array
// itself (not its contents) — what address-of and the load/store helpers
// above both need before indexing into it.
func (c *funcCtx) loadWrapperRef(d *cminorast.Declaration) error {
	if d.Kind == cminorast.VarGlobal {
		desc, err := wrapperArrayDescriptor(d.Type)
		if err != nil {
			return err
		}
		c.cb.Getstatic(c.gen.className, d.Name, desc, jvmtypes.CategoryReference)
		return nil
	}
	slot, ok := c.liftedSlot[d]
	if !ok {
		return fmt.Errorf("codegen: %s is marked NeedsHeapLift but was never lifted", d.Name)
	}
	c.cb.Load(slot, jvmtypes.CategoryReference)
	return nil
}

// cloneIfAliasable deep-copies/clones the value currently on top of
// stack if t's kind requires independent-copy-on-read semantics.
func (c *funcCtx) cloneIfAliasable(t *cminorast.TypeSpecifier) error {
	switch t.Kind {
	case cminorast.KindStruct, cminorast.KindUnion:
		return c.low.EmitStructDeepCopy(t)
	case cminorast.KindArray:
		return c.low.EmitArrayDeepCopy(t)
	case cminorast.KindPointer:
		return c.low.EmitPtrClone(t)
	default:
		return nil
	}
}

// storeIdent consumes the top-of-stack value (already the right
// category and, for struct/array/pointer, already an independent copy)
// and stores it into d.
func (c *funcCtx) storeIdent(d *cminorast.Declaration) error {
	cat, err := jvmtypes.Category(d.Type)
	if err != nil {
		return err
	}

	if d.NeedsHeapLift {
		tmp := c.cb.AllocateLocal(cat)
		if err := c.cb.Store(tmp, cat); err != nil {
			return err
		}
		if err := c.loadWrapperRef(d); err != nil {
			return err
		}
		c.cb.Iconst(0)
		c.cb.Load(tmp, cat)
		return c.cb.ArrayStore(cat, narrowKindFor(d.Type))
	}

	if d.Kind == cminorast.VarGlobal {
		desc, err := jvmtypes.Descriptor(d.Type)
		if err != nil {
			return err
		}
		return c.cb.Putstatic(c.gen.className, d.Name, desc, cat)
	}

	return c.cb.Store(d.Slot, cat)
}

// resolveIdent looks a name up through the block scope chain, then the
// class's globals, matching ordinary C scoping (function parameters are
// folded into scope at installParams time).
func (c *funcCtx) resolveIdent(name string) (*cminorast.Declaration, error) {
	if d, ok := c.scope.Lookup(name); ok {
		return d, nil
	}
	if d, ok := c.gen.globals[name]; ok {
		return d, nil
	}
	if _, ok := c.gen.functions[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFunctionPointerUnsupported)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnresolvedIdent)
}

// addrOfIdent implements &x: only a heap-lifted local/param/global may
// have its address taken (spec.md §4.5, §7).
func (c *funcCtx) addrOfIdent(d *cminorast.Declaration) error {
	if !d.NeedsHeapLift {
		return fmt.Errorf("&%s: %w", d.Name, ErrAddressOfNonLifted)
	}
	if err := c.loadWrapperRef(d); err != nil {
		return err
	}
	c.cb.Iconst(0)
	return c.low.EmitPtrCreate(pointerTo(d.Type))
}

// pushNullLiteral emits NULL in a pointer context as a constructed null
// wrapper (ptr_create(null, 0)) rather than a raw aconst_null, so later
// control-flow merges agree on a REFERENCE of the wrapper's own shape
// (spec.md §4.5).
func (c *funcCtx) pushNullLiteral(t *cminorast.TypeSpecifier) error {
	c.cb.AconstNull()
	c.cb.Iconst(0)
	return c.low.EmitPtrCreate(t)
}

// labelFor returns the registered label for name, creating it on first
// reference (spec.md §4.5: "a function-scoped name registry").
func (c *funcCtx) labelFor(name string) *codebuilder.Label {
	if l, ok := c.labels[name]; ok {
		return l
	}
	l := c.cb.CreateLabel(codebuilder.LabelPlain)
	c.labels[name] = l
	return l
}
