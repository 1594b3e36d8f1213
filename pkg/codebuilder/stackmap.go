package codebuilder

import "cminor.dev/jvmgen/pkg/jvmtypes"

// VerificationType is one JVM StackMapTable verification_type_info entry.
// Reference categories are reported as java/lang/Object UNLESS a more
// concrete class name was recorded on the local's slot (SlotEntry.ClassName,
// set via AllocateLocalClass): a slot read with getfield/checkcast/aaload
// after a branch target needs the verifier to see its real class there, not
// the widened default. Operand-stack reference values still widen to
// Object — they are never the JVM-spec `invokestatic`/`getfield` receiver
// in code this package emits; only locals are. See DESIGN.md.
type VerificationType struct {
	Tag       string // "Top", "Integer", "Float", "Long", "Double", "Null", "Object"
	ClassName string // only meaningful when Tag == "Object"
}

type placedLabel struct {
	pc    int
	frame Frame
}

func verificationTypeOf(cat jvmtypes.ValueCategory) VerificationType {
	switch cat {
	case jvmtypes.CategoryInt:
		return VerificationType{Tag: "Integer"}
	case jvmtypes.CategoryLong:
		return VerificationType{Tag: "Long"}
	case jvmtypes.CategoryFloat:
		return VerificationType{Tag: "Float"}
	case jvmtypes.CategoryDouble:
		return VerificationType{Tag: "Double"}
	default:
		return VerificationType{Tag: "Object", ClassName: "java/lang/Object"}
	}
}

// verificationTypeOfLocal is verificationTypeOf, specialized for a local
// slot: a reference slot with a recorded ClassName reports that class
// instead of widening to java/lang/Object.
func verificationTypeOfLocal(e SlotEntry) VerificationType {
	if e.Category == jvmtypes.CategoryReference && e.ClassName != "" {
		return VerificationType{Tag: "Object", ClassName: e.ClassName}
	}
	return verificationTypeOf(e.Category)
}

// StackMapFrame is one synthesized entry, expressed in the delta form the
// JVM Spec §4.7.4 names; the serializer is responsible for the final
// frame_type byte and pc-delta encoding.
type StackMapFrame struct {
	PC     int
	Kind   string // "same", "same_locals_1_stack_item", "chop", "append", "full"
	ChopCount int
	Locals []VerificationType
	Stack  []VerificationType
}

// InitialLocalsCount reports how many used local slots f carries, in the
// same terms SynthesizeStackMapTable's delta encoding treats a method's
// implicit entry frame as having. The classfile serializer needs this
// count (rather than the Frame itself) to decode append/chop deltas
// against the entry frame once StackMapFrame values have left this
// package.
func InitialLocalsCount(f Frame) int {
	return len(localsVerificationTypes(f))
}

func localsVerificationTypes(f Frame) []VerificationType {
	var out []VerificationType
	for i := 0; i < len(f.Locals); i++ {
		e := f.Locals[i]
		if !e.Used || e.Top {
			continue
		}
		out = append(out, verificationTypeOfLocal(e))
	}
	return out
}

func stackVerificationTypes(f Frame) []VerificationType {
	out := make([]VerificationType, len(f.Stack))
	for i, c := range f.Stack {
		out[i] = verificationTypeOf(c)
	}
	return out
}

func sameLocals(a, b []VerificationType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SynthesizeStackMapTable runs after ResolveJumps: it walks every label
// with a saved frame in pc order and reports the delta against the
// previous reported frame (the method's initial parameter frame, for the
// first entry). Every branch target gets an entry (spec.md §8 property 3).
func (b *Builder) SynthesizeStackMapTable(initial Frame) ([]StackMapFrame, error) {
	var placed []placedLabel
	for _, l := range b.labels {
		if l.placed && l.frameSaved {
			placed = append(placed, placedLabel{pc: l.pc, frame: l.frame})
		}
	}
	// stable sort by pc; labels sharing a pc (e.g. a label placed right
	// after another with no code between) collapse to one reported frame
	sortPlacedLabels(placed)

	var frames []StackMapFrame
	prevLocals := localsVerificationTypes(initial)
	prevPC := -1

	for _, pl := range placed {
		if pl.pc == prevPC {
			continue
		}
		locals := localsVerificationTypes(pl.frame)
		stack := stackVerificationTypes(pl.frame)

		frame := StackMapFrame{PC: pl.pc, Locals: locals, Stack: stack}
		switch {
		case len(stack) == 0 && sameLocals(locals, prevLocals):
			frame.Kind = "same"
		case len(stack) == 1 && sameLocals(locals, prevLocals):
			frame.Kind = "same_locals_1_stack_item"
		case len(stack) == 0 && len(locals) < len(prevLocals) && sameLocals(locals, prevLocals[:len(locals)]):
			frame.Kind = "chop"
			frame.ChopCount = len(prevLocals) - len(locals)
		case len(stack) == 0 && len(locals) > len(prevLocals) && sameLocals(prevLocals, locals[:len(prevLocals)]):
			frame.Kind = "append"
		default:
			frame.Kind = "full"
		}

		frames = append(frames, frame)
		prevLocals = locals
		prevPC = pl.pc
	}

	return frames, nil
}

func sortPlacedLabels(s []placedLabel) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].pc < s[j-1].pc; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
