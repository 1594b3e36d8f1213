package codegen

import (
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
	"cminor.dev/jvmgen/pkg/codebuilder"
	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// genStmt dispatches one statement. A statement reached with the builder
// already dead (everything before it in the same block returned, broke,
// continued, or fell into an infinite loop with no break) is silently
// skipped: nothing downstream of an unconditional transfer can ever run.
func (c *funcCtx) genStmt(stmt cminorast.Statement) error {
	if !c.cb.Alive() {
		return nil
	}

	switch s := stmt.(type) {
	case cminorast.CompoundStmt:
		return c.genBlock(s.Body)
	case cminorast.DeclStmt:
		return c.genDecl(s)
	case cminorast.ExprStmt:
		return c.genExprStmt(s)
	case cminorast.IfStmt:
		return c.genIf(s)
	case cminorast.WhileStmt:
		return c.genWhile(s)
	case cminorast.DoWhileStmt:
		return c.genDoWhile(s)
	case cminorast.ForStmt:
		return c.genFor(s)
	case cminorast.SwitchStmt:
		return c.genSwitch(s)
	case cminorast.BreakStmt:
		return c.cb.EmitBreak()
	case cminorast.ContinueStmt:
		return c.cb.EmitContinue()
	case cminorast.LabelStmt:
		return c.genLabel(s)
	case cminorast.GotoStmt:
		return c.cb.Jump(c.labelFor(s.Label))
	case cminorast.ReturnStmt:
		return c.genReturn(s)
	default:
		return fmt.Errorf("codegen: unhandled statement node %T", stmt)
	}
}

// genBlock runs stmts under a fresh child scope and a codebuilder block
// boundary, so locals declared inside don't outlive it and their slots
// become available for reuse once it closes.
func (c *funcCtx) genBlock(stmts []cminorast.Statement) error {
	c.cb.BeginBlock()
	prevScope := c.scope
	c.scope = NewScope(prevScope)
	defer func() {
		c.scope = prevScope
		c.cb.EndBlock()
	}()

	for _, st := range stmts {
		if err := c.genStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *funcCtx) genExprStmt(s cminorast.ExprStmt) error {
	cat, err := c.genExpr(s.Expr)
	if err != nil {
		return err
	}
	if cat == "" { // a void call leaves nothing to discard
		return nil
	}
	return c.cb.PopValue()
}

// genDecl allocates a fresh local for s.Decl itself, ignoring whatever
// Slot the front end carried on it: local slot numbering past the
// parameters is owned entirely by the builder's block watermark, so every
// non-parameter local — named or scratch — is assigned through
// AllocateLocal to keep that numbering collision-free.
func (c *funcCtx) genDecl(s cminorast.DeclStmt) error {
	d := s.Decl
	cat, err := jvmtypes.Category(d.Type)
	if err != nil {
		return err
	}

	if d.NeedsHeapLift {
		return c.genHeapLiftedDecl(&d, s.Init, cat)
	}

	d.Slot = c.cb.AllocateLocal(cat)
	if s.Init != nil {
		initCat, err := c.genExpr(s.Init)
		if err != nil {
			return err
		}
		if initCat != cat {
			return fmt.Errorf("codegen: initializer for %s has category %s, want %s", d.Name, initCat, cat)
		}
	} else if err := c.low.DefaultInitialize(d.Type); err != nil {
		return err
	}
	if err := c.cb.Store(d.Slot, cat); err != nil {
		return err
	}

	c.scope.Define(&d)
	return nil
}

// genHeapLiftedDecl mirrors liftParam for a local whose address is taken
// somewhere in its scope: box it into a fresh 1-element wrapper array up
// front rather than after the fact.
func (c *funcCtx) genHeapLiftedDecl(d *cminorast.Declaration, init cminorast.Expression, cat jvmtypes.ValueCategory) error {
	c.cb.Iconst(1)
	if isScalarCategory(cat) {
		if err := c.cb.Newarray(newarrayAtypeFor(d.Type)); err != nil {
			return err
		}
	} else {
		className, err := jvmtypes.InternalClassName(d.Type)
		if err != nil {
			return err
		}
		if err := c.cb.Anewarray(className); err != nil {
			return err
		}
	}
	arrClass, err := heapLiftArrayClassName(d.Type)
	if err != nil {
		return err
	}
	tmpArr := c.cb.AllocateLocalClass(jvmtypes.CategoryReference, arrClass)
	if err := c.cb.Store(tmpArr, jvmtypes.CategoryReference); err != nil {
		return err
	}

	c.cb.Load(tmpArr, jvmtypes.CategoryReference)
	c.cb.Iconst(0)
	if init != nil {
		initCat, err := c.genExpr(init)
		if err != nil {
			return err
		}
		if initCat != cat {
			return fmt.Errorf("codegen: initializer for %s has category %s, want %s", d.Name, initCat, cat)
		}
	} else if err := c.low.DefaultInitialize(d.Type); err != nil {
		return err
	}
	if err := c.cb.ArrayStore(cat, narrowKindFor(d.Type)); err != nil {
		return err
	}

	c.liftedSlot[d] = tmpArr
	c.scope.Define(d)
	return nil
}

func (c *funcCtx) genIf(s cminorast.IfStmt) error {
	condCat, err := c.genExpr(s.Cond)
	if err != nil {
		return err
	}
	if condCat != jvmtypes.CategoryInt {
		return fmt.Errorf("codegen: if condition must be int-categoried, got %s", condCat)
	}

	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)

	if len(s.Else) == 0 {
		if err := c.cb.JumpIf(codebuilder.CondIfEq, endLabel); err != nil {
			return err
		}
		if err := c.genBlock(s.Then); err != nil {
			return err
		}
		return c.cb.PlaceLabel(endLabel)
	}

	elseLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	if err := c.cb.JumpIf(codebuilder.CondIfEq, elseLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Then); err != nil {
		return err
	}
	if c.cb.Alive() {
		if err := c.cb.Jump(endLabel); err != nil {
			return err
		}
	}
	if err := c.cb.PlaceLabel(elseLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Else); err != nil {
		return err
	}
	return c.cb.PlaceLabel(endLabel)
}

func (c *funcCtx) genWhile(s cminorast.WhileStmt) error {
	loop := &codebuilder.LoopEntry{
		ConditionLabel: c.cb.CreateLabel(codebuilder.LabelPlain),
		BodyLabel:      c.cb.CreateLabel(codebuilder.LabelLoopHeader),
		EndLabel:       c.cb.CreateLabel(codebuilder.LabelPlain),
	}
	loop.PostLabel = loop.ConditionLabel
	loop.ContinueLabel = loop.ConditionLabel
	c.cb.PushLoopRaw(loop)
	defer c.cb.PopLoopRaw()

	if err := c.cb.Jump(loop.ConditionLabel); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(loop.BodyLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Body); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(loop.ConditionLabel); err != nil {
		return err
	}

	condCat, err := c.genExpr(s.Cond)
	if err != nil {
		return err
	}
	if condCat != jvmtypes.CategoryInt {
		return fmt.Errorf("codegen: while condition must be int-categoried, got %s", condCat)
	}
	if err := c.cb.JumpIf(codebuilder.CondIfNe, loop.BodyLabel); err != nil {
		return err
	}
	return c.cb.PlaceLabel(loop.EndLabel)
}

func (c *funcCtx) genDoWhile(s cminorast.DoWhileStmt) error {
	loop := &codebuilder.LoopEntry{
		BodyLabel: c.cb.CreateLabel(codebuilder.LabelLoopHeader),
		EndLabel:  c.cb.CreateLabel(codebuilder.LabelPlain),
		IsDoWhile: true,
	}
	loop.ConditionLabel = c.cb.CreateLabel(codebuilder.LabelPlain)
	loop.PostLabel = loop.ConditionLabel
	loop.ContinueLabel = loop.ConditionLabel
	c.cb.PushLoopRaw(loop)
	defer c.cb.PopLoopRaw()

	if err := c.cb.PlaceLabel(loop.BodyLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Body); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(loop.ConditionLabel); err != nil {
		return err
	}

	condCat, err := c.genExpr(s.Cond)
	if err != nil {
		return err
	}
	if condCat != jvmtypes.CategoryInt {
		return fmt.Errorf("codegen: do-while condition must be int-categoried, got %s", condCat)
	}
	if err := c.cb.JumpIf(codebuilder.CondIfNe, loop.BodyLabel); err != nil {
		return err
	}
	return c.cb.PlaceLabel(loop.EndLabel)
}

func (c *funcCtx) genFor(s cminorast.ForStmt) error {
	c.cb.BeginBlock()
	prevScope := c.scope
	c.scope = NewScope(prevScope)
	defer func() {
		c.scope = prevScope
		c.cb.EndBlock()
	}()

	if s.Init != nil {
		if err := c.genStmt(s.Init); err != nil {
			return err
		}
	}

	loop := &codebuilder.LoopEntry{
		BodyLabel:      c.cb.CreateLabel(codebuilder.LabelLoopHeader),
		PostLabel:      c.cb.CreateLabel(codebuilder.LabelPlain),
		ConditionLabel: c.cb.CreateLabel(codebuilder.LabelPlain),
		EndLabel:       c.cb.CreateLabel(codebuilder.LabelPlain),
	}
	loop.ContinueLabel = loop.PostLabel
	c.cb.PushLoopRaw(loop)
	defer c.cb.PopLoopRaw()

	if err := c.cb.Jump(loop.ConditionLabel); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(loop.BodyLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Body); err != nil {
		return err
	}
	if err := c.cb.PlaceLabel(loop.PostLabel); err != nil {
		return err
	}
	if s.Post != nil {
		postCat, err := c.genExpr(s.Post)
		if err != nil {
			return err
		}
		if postCat != "" {
			if err := c.cb.PopValue(); err != nil {
				return err
			}
		}
	}
	if err := c.cb.PlaceLabel(loop.ConditionLabel); err != nil {
		return err
	}

	if s.Cond != nil {
		condCat, err := c.genExpr(s.Cond)
		if err != nil {
			return err
		}
		if condCat != jvmtypes.CategoryInt {
			return fmt.Errorf("codegen: for condition must be int-categoried, got %s", condCat)
		}
		if err := c.cb.JumpIf(codebuilder.CondIfNe, loop.BodyLabel); err != nil {
			return err
		}
	} else if err := c.cb.Jump(loop.BodyLabel); err != nil {
		return err
	}
	return c.cb.PlaceLabel(loop.EndLabel)
}

// genSwitch picks between a dispatch-table lowering (tableswitch or
// lookupswitch, chosen by case density) and a chain of equality tests,
// matching the 3-case threshold the density heuristic assumes.
func (c *funcCtx) genSwitch(s cminorast.SwitchStmt) error {
	discCat, err := c.genExpr(s.Discriminant)
	if err != nil {
		return err
	}
	if discCat != jvmtypes.CategoryInt {
		return fmt.Errorf("codegen: switch discriminant must be int-categoried, got %s", discCat)
	}
	exprLocal := c.cb.AllocateLocal(jvmtypes.CategoryInt)
	if err := c.cb.Store(exprLocal, jvmtypes.CategoryInt); err != nil {
		return err
	}

	endLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	entry := &codebuilder.SwitchEntry{EndLabel: endLabel, EntryFrame: c.cb.Frame(), ExprLocal: exprLocal}
	c.cb.PushSwitchRaw(entry)
	defer c.cb.PopSwitchRaw()

	if len(s.Cases) >= 3 {
		low, high := switchCaseRange(s.Cases)
		return c.genSwitchDispatch(s, exprLocal, endLabel, codebuilder.ShouldUseTableswitch(len(s.Cases), low, high), low, high)
	}
	return c.genSwitchChain(s, exprLocal, endLabel)
}

func switchCaseRange(cases []cminorast.SwitchCase) (int64, int64) {
	low, high := cases[0].Value, cases[0].Value
	for _, cs := range cases[1:] {
		if cs.Value < low {
			low = cs.Value
		}
		if cs.Value > high {
			high = cs.Value
		}
	}
	return low, high
}

// genSwitchChain lowers a small switch as a sequence of equality tests
// against the discriminant, each branching to its case body; the bodies
// themselves are laid out after every test so fallthrough between
// consecutive cases with no break still works by straight-line descent.
func (c *funcCtx) genSwitchChain(s cminorast.SwitchStmt, exprLocal int, endLabel *codebuilder.Label) error {
	defaultLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	caseLabels := make([]*codebuilder.Label, len(s.Cases))
	for i := range s.Cases {
		caseLabels[i] = c.cb.CreateLabel(codebuilder.LabelPlain)
	}

	for i, cs := range s.Cases {
		c.cb.Load(exprLocal, jvmtypes.CategoryInt)
		c.cb.Iconst(int32(cs.Value))
		if err := c.cb.JumpIf(codebuilder.CondICmpEq, caseLabels[i]); err != nil {
			return err
		}
	}
	if err := c.cb.Jump(defaultLabel); err != nil {
		return err
	}

	for i, cs := range s.Cases {
		if err := c.cb.PlaceLabel(caseLabels[i]); err != nil {
			return err
		}
		if err := c.genBlock(cs.Body); err != nil {
			return err
		}
	}
	if err := c.cb.PlaceLabel(defaultLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Default); err != nil {
		return err
	}
	if c.cb.Alive() {
		if err := c.cb.Jump(endLabel); err != nil {
			return err
		}
	}
	return c.cb.PlaceLabel(endLabel)
}

// genSwitchDispatch lowers a dense-enough switch through a real
// tableswitch/lookupswitch instruction. Both require every target label
// already placed, so the dispatch instruction itself is emitted after all
// case/default bodies; an initial unconditional jump carries control
// there, and the dispatch's own (backward) offsets land back on the case
// bodies above it. Since nothing has jumped to a given case label by the
// time it's placed (the dispatch that will is still unbuilt), every
// case/default label has the switch's entry frame (captured in
// SwitchEntry.EntryFrame when the switch opened) preset onto it before
// placement: the dispatch instruction is the only thing that ever jumps
// there, and it always enters with that same frame, so that's the frame
// StackMapTable must declare regardless of what the previous case's body
// left live.
func (c *funcCtx) genSwitchDispatch(s cminorast.SwitchStmt, exprLocal int, endLabel *codebuilder.Label, useTable bool, low, high int64) error {
	entryFrame := c.cb.CurrentSwitch().EntryFrame

	dispatchLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	defaultLabel := c.cb.CreateLabel(codebuilder.LabelPlain)
	caseLabels := make([]*codebuilder.Label, len(s.Cases))
	for i := range s.Cases {
		caseLabels[i] = c.cb.CreateLabel(codebuilder.LabelPlain)
	}

	if err := c.cb.Jump(dispatchLabel); err != nil {
		return err
	}

	for i, cs := range s.Cases {
		c.cb.PresetLabelFrame(caseLabels[i], entryFrame)
		if err := c.cb.PlaceLabel(caseLabels[i]); err != nil {
			return err
		}
		if err := c.genBlock(cs.Body); err != nil {
			return err
		}
	}

	c.cb.PresetLabelFrame(defaultLabel, entryFrame)
	if err := c.cb.PlaceLabel(defaultLabel); err != nil {
		return err
	}
	if err := c.genBlock(s.Default); err != nil {
		return err
	}
	if c.cb.Alive() {
		if err := c.cb.Jump(endLabel); err != nil {
			return err
		}
	}

	if err := c.cb.PlaceLabel(dispatchLabel); err != nil {
		return err
	}
	c.cb.Load(exprLocal, jvmtypes.CategoryInt)

	if useTable {
		table := make([]*codebuilder.Label, high-low+1)
		for i := range table {
			table[i] = defaultLabel
		}
		for i, cs := range s.Cases {
			table[cs.Value-low] = caseLabels[i]
		}
		if err := c.cb.BuildTableswitch(defaultLabel, low, high, table); err != nil {
			return err
		}
	} else {
		entries := make([]codebuilder.SwitchCaseLabel, len(s.Cases))
		for i, cs := range s.Cases {
			entries[i] = codebuilder.SwitchCaseLabel{Value: cs.Value, Label: caseLabels[i]}
		}
		if err := c.cb.BuildLookupswitch(defaultLabel, entries); err != nil {
			return err
		}
	}

	return c.cb.PlaceLabel(endLabel)
}

func (c *funcCtx) genLabel(s cminorast.LabelStmt) error {
	l := c.labelFor(s.Name)
	c.cb.SetAlive(true)
	if err := c.cb.PlaceLabel(l); err != nil {
		return err
	}
	return c.genStmt(s.Stmt)
}

// genReturn relies on genExpr already having produced an independent
// value for s.Expr: identifier loads clone aliasable values on every
// read, so a bare `return x;` never lets the caller observe further
// mutation of x.
func (c *funcCtx) genReturn(s cminorast.ReturnStmt) error {
	if s.Expr == nil {
		c.cb.ReturnVoid()
		return nil
	}
	cat, err := c.genExpr(s.Expr)
	if err != nil {
		return err
	}
	return c.cb.Return(cat)
}
