package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/constpool"
	"cminor.dev/jvmgen/pkg/jvmtypes"
	"cminor.dev/jvmgen/pkg/lowering"
)

// Generator drives one translation unit end to end. One Generator is
// constructed per class; its constant pool and type mapper are shared
// across every method in that class (spec.md §5, "the constant pool is
// mutated across methods within one class").
type Generator struct {
	pool   *constpool.Builder
	mapper *jvmtypes.Mapper

	className string
	globals   map[string]*cminorast.Declaration
	functions map[string]*cminorast.FunctionDeclaration

	wrapperKindsUsed map[string]bool
}

// NewGenerator returns a Generator ready to compile one translation
// unit's class.
func NewGenerator() *Generator {
	return &Generator{
		pool:             constpool.NewBuilder(),
		mapper:           jvmtypes.NewMapper(),
		wrapperKindsUsed: map[string]bool{},
	}
}

// GenerateClass compiles every function in tu into one Class.
func (g *Generator) GenerateClass(tu *cminorast.TranslationUnit) (*Class, error) {
	g.className = tu.ClassName
	g.globals = map[string]*cminorast.Declaration{}
	for i := range tu.Globals {
		g.globals[tu.Globals[i].Name] = &tu.Globals[i]
	}
	g.functions = map[string]*cminorast.FunctionDeclaration{}
	for i := range tu.Functions {
		g.functions[tu.Functions[i].Name] = &tu.Functions[i]
	}

	class := &Class{Name: tu.ClassName, Super: "java/lang/Object", Pool: g.pool, Globals: tu.Globals}

	for i := range tu.Functions {
		fn := &tu.Functions[i]
		if fn.Body == nil {
			continue // attribute-bound declaration; nothing to emit
		}
		method, err := g.generateMethod(fn)
		if err != nil {
			return nil, fmt.Errorf("codegen: function %s: %w", fn.Name, err)
		}
		class.Methods = append(class.Methods, *method)
	}

	class.WrapperKindsUsed = g.wrapperKindsUsed
	return class, nil
}

// recordWrapperKind notes that kind's runtime class was referenced, for
// the external artifact step (spec.md §6).
func (g *Generator) recordWrapperKind(kind jvmtypes.PointerRuntimeKind) {
	g.wrapperKindsUsed[jvmtypes.WrapperClassName(kind)] = true
}

// funcCtx is the per-method compilation context: the builder, the
// lowering facade bound to it, the current block scope, the goto/label
// registry, and the function being compiled.
type funcCtx struct {
	gen   *Generator
	fn    *cminorast.FunctionDeclaration
	cb    *codebuilder.Builder
	low   *lowering.Lowering
	scope *Scope

	// liftedSlot maps a heap-lifted declaration to the local slot
	// holding its wrapper array reference, overriding Declaration.Slot
	// for load/store/address-of purposes.
	liftedSlot map[*cminorast.Declaration]int

	// labels is the function-scoped name -> label registry goto/label
	// statements share (spec.md §4.5).
	labels map[string]*codebuilder.Label
}

func (g *Generator) generateMethod(fn *cminorast.FunctionDeclaration) (*Method, error) {
	desc, err := g.mapper.MethodDescriptor(fn)
	if err != nil {
		return nil, err
	}

	cb := codebuilder.NewBuilder(g.pool)
	ctx := &funcCtx{
		gen:        g,
		fn:         fn,
		cb:         cb,
		low:        lowering.New(cb, g.pool, g.mapper),
		scope:      NewScope(nil),
		liftedSlot: map[*cminorast.Declaration]int{},
		labels:     map[string]*codebuilder.Label{},
	}

	initialFrame, err := ctx.installParams()
	if err != nil {
		return nil, err
	}

	for i := range fn.Body {
		if err := ctx.genStmt(fn.Body[i]); err != nil {
			return nil, err
		}
	}

	if cb.Alive() {
		if err := ctx.emitFallthroughReturn(); err != nil {
			return nil, err
		}
	}

	if err := cb.ResolveJumps(); err != nil {
		return nil, err
	}
	frames, err := cb.SynthesizeStackMapTable(initialFrame)
	if err != nil {
		return nil, err
	}

	return &Method{
		Name:          fn.Name,
		Descriptor:    desc,
		IsStatic:      true,
		Code:          cb.Code(),
		MaxStack:      cb.MaxStack(),
		MaxLocals:     cb.MaxLocals(),
		LineTable:     cb.LineTable(),
		StackFrames:   frames,
		InitialLocals: codebuilder.InitialLocalsCount(initialFrame),
	}, nil
}

// installParams assigns each fixed parameter its pre-assigned slot,
// installs the synthetic __varargs slot for variadic functions, then
// heap-lifts every address-taken parameter into a freshly allocated
// wrapper local (spec.md §4.5's method-entry responsibility). Returns
// the frame snapshot the StackMapTable's first implicit frame must match.
func (c *funcCtx) installParams() (codebuilder.Frame, error) {
	for i := range c.fn.Params {
		p := &c.fn.Params[i]
		cat, err := jvmtypes.Category(p.Type)
		if err != nil {
			return codebuilder.Frame{}, err
		}
		c.cb.SetParam(p.Slot, cat)
		c.scope.Define(p)
	}

	if c.fn.IsVariadic {
		c.cb.SetParam(c.fn.VarargsSlot, jvmtypes.CategoryReference)
	}

	initial := c.cb.Frame()

	for i := range c.fn.Params {
		p := &c.fn.Params[i]
		if !p.NeedsHeapLift {
			continue
		}
		if err := c.liftParam(p); err != nil {
			return codebuilder.Frame{}, err
		}
	}

	return initial, nil
}

// liftParam boxes an address-taken parameter's current value into a
// 1-element array and stores the array reference into a fresh local,
// recording the override in liftedSlot.
func (c *funcCtx) liftParam(p *cminorast.Declaration) error {
	cat, err := jvmtypes.Category(p.Type)
	if err != nil {
		return err
	}

	c.cb.Iconst(1)
	if isScalarCategory(cat) {
		if err := c.cb.Newarray(newarrayAtypeFor(p.Type)); err != nil {
			return err
		}
	} else {
		className, err := jvmtypes.InternalClassName(p.Type)
		if err != nil {
			return err
		}
		if err := c.cb.Anewarray(className); err != nil {
			return err
		}
	}

	arrClass, err := heapLiftArrayClassName(p.Type)
	if err != nil {
		return err
	}
	tmpArr := c.cb.AllocateLocalClass(jvmtypes.CategoryReference, arrClass)
	if err := c.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	c.cb.Load(tmpArr, jvmtypes.CategoryReference)
	c.cb.Iconst(0)
	c.cb.Load(p.Slot, cat)
	narrow := narrowKindFor(p.Type)
	if err := c.cb.ArrayStore(cat, narrow); err != nil {
		return err
	}

	c.liftedSlot[p] = tmpArr
	return nil
}

func isScalarCategory(cat jvmtypes.ValueCategory) bool {
	return cat != jvmtypes.CategoryReference
}

func newarrayAtypeFor(t *cminorast.TypeSpecifier) int {
	switch t.Kind {
	case cminorast.KindBool:
		return codebuilder.AtBoolean
	case cminorast.KindChar:
		return codebuilder.AtByte
	case cminorast.KindShort:
		return codebuilder.AtShort
	case cminorast.KindLong:
		return codebuilder.AtLong
	case cminorast.KindFloat:
		return codebuilder.AtFloat
	case cminorast.KindDouble:
		return codebuilder.AtDouble
	default:
		return codebuilder.AtInt
	}
}

// heapLiftArrayClassName returns the internal class name of the 1-element
// wrapper array a heap-lifted local/parameter of type t is boxed into
// (e.g. "[I", "[Z", "[L__intPtr;"), for recording on the wrapper's local
// slot via AllocateLocalClass so the StackMapTable reports the array's real
// type instead of widening it to java/lang/Object.
func heapLiftArrayClassName(t *cminorast.TypeSpecifier) (string, error) {
	cat, err := jvmtypes.Category(t)
	if err != nil {
		return "", err
	}
	if !isScalarCategory(cat) {
		className, err := jvmtypes.InternalClassName(t)
		if err != nil {
			return "", err
		}
		return "[L" + className + ";", nil
	}
	switch t.Kind {
	case cminorast.KindBool:
		return "[Z", nil
	case cminorast.KindChar:
		return "[B", nil
	case cminorast.KindShort:
		return "[S", nil
	case cminorast.KindLong:
		return "[J", nil
	case cminorast.KindFloat:
		return "[F", nil
	case cminorast.KindDouble:
		return "[D", nil
	default:
		return "[I", nil
	}
}

func narrowKindFor(t *cminorast.TypeSpecifier) codebuilder.NarrowArrayKind {
	switch t.Kind {
	case cminorast.KindChar, cminorast.KindBool:
		return codebuilder.NarrowByteOrBool
	case cminorast.KindShort:
		return codebuilder.NarrowShort
	default:
		return codebuilder.NarrowNone
	}
}

// emitFallthroughReturn synthesizes a default-valued return when control
// can fall off the end of a non-void function (spec.md §4.5).
func (c *funcCtx) emitFallthroughReturn() error {
	if c.fn.Return.Kind == cminorast.KindVoid {
		c.cb.ReturnVoid()
		return nil
	}
	if err := c.low.DefaultInitialize(c.fn.Return); err != nil {
		return err
	}
	retCat, err := jvmtypes.Category(c.fn.Return)
	if err != nil {
		return err
	}
	return c.cb.Return(retCat)
}
