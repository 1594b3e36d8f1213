package codebuilder

// ControlEntry is an active structured region on the control stack: loop,
// switch, or if. break/continue and case/default placement walk the stack
// outward looking for the nearest match.
type ControlEntry interface{ isControlEntry() }

// LoopEntry tracks a while/do-while/for region.
type LoopEntry struct {
	ConditionLabel *Label // re-evaluates the loop condition
	BodyLabel      *Label
	PostLabel      *Label // for's post-expression; equals ConditionLabel for while/do-while
	EndLabel       *Label
	ContinueLabel  *Label // where `continue` jumps: PostLabel for `for`, ConditionLabel otherwise
	IsDoWhile      bool
}

func (*LoopEntry) isControlEntry() {}

// SwitchCaseLabel pairs a case constant with its body label.
type SwitchCaseLabel struct {
	Value int64
	Label *Label
}

// SwitchEntry tracks a switch region awaiting dispatch-table emission at
// its close.
type SwitchEntry struct {
	DispatchLabel *Label // where the tableswitch/lookupswitch instruction itself is emitted
	DefaultLabel  *Label
	EndLabel      *Label
	Cases         []SwitchCaseLabel
	EntryFrame    Frame // snapshot taken when the switch opened, saved onto every case/default label
	ExprLocal     int   // local slot holding the discriminant
}

func (*SwitchEntry) isControlEntry() {}

// IfEntry tracks an if/else region so end-of-if alive computation can see
// both branches' outcomes.
type IfEntry struct {
	ThenLabel   *Label
	ElseLabel   *Label
	EndLabel    *Label
	AliveOnThen bool
}

func (*IfEntry) isControlEntry() {}

// PushLoopRaw/PushSwitchRaw/PushIfContext open a structured region.
func (b *Builder) PushLoopRaw(e *LoopEntry)     { b.controlStack.Push(e) }
func (b *Builder) PushSwitchRaw(e *SwitchEntry) { b.controlStack.Push(e) }
func (b *Builder) PushIfContext(e *IfEntry)     { b.controlStack.Push(e) }

// PopLoopRaw/PopSwitchRaw/PopIfContext close the innermost region; callers
// are expected to pop in the same order they pushed (LIFO), matching the
// nesting of the AST.
func (b *Builder) PopLoopRaw() *LoopEntry     { return b.popControl().(*LoopEntry) }
func (b *Builder) PopSwitchRaw() *SwitchEntry { return b.popControl().(*SwitchEntry) }
func (b *Builder) PopIfContext() *IfEntry     { return b.popControl().(*IfEntry) }

func (b *Builder) popControl() ControlEntry {
	e, err := b.controlStack.Pop()
	if err != nil {
		// Callers only pop in LIFO lockstep with a matching push; an empty
		// stack here means a caller broke that discipline.
		panic("codebuilder: popControl on an empty control stack")
	}
	return e
}

// CurrentLoop returns the nearest enclosing loop, or nil outside one.
func (b *Builder) CurrentLoop() *LoopEntry {
	var found *LoopEntry
	b.controlStack.Iterator()(func(e ControlEntry) bool {
		if l, ok := e.(*LoopEntry); ok {
			found = l
			return false
		}
		return true
	})
	return found
}

// CurrentSwitch returns the nearest enclosing switch, or nil outside one.
func (b *Builder) CurrentSwitch() *SwitchEntry {
	var found *SwitchEntry
	b.controlStack.Iterator()(func(e ControlEntry) bool {
		if s, ok := e.(*SwitchEntry); ok {
			found = s
			return false
		}
		return true
	})
	return found
}

// EmitContinue jumps to the nearest enclosing loop's continue target.
func (b *Builder) EmitContinue() error {
	loop := b.CurrentLoop()
	if loop == nil {
		return ErrNoEnclosingLoop
	}
	return b.Jump(loop.ContinueLabel)
}

// EmitBreak jumps to the nearest enclosing loop-or-switch's end label,
// whichever is innermost (a switch nested in a loop catches break first).
func (b *Builder) EmitBreak() error {
	var target *Label
	b.controlStack.Iterator()(func(e ControlEntry) bool {
		switch e := e.(type) {
		case *LoopEntry:
			target = e.EndLabel
			return false
		case *SwitchEntry:
			target = e.EndLabel
			return false
		}
		return true
	})
	if target == nil {
		return ErrNoEnclosingLoop
	}
	return b.Jump(target)
}
