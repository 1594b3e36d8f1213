package codebuilder

import (
	"sort"

	"cminor.dev/jvmgen/pkg/jvmtypes"
)

// ShouldUseTableswitch is the density heuristic from spec.md §8/§4.3:
// called only once a switch has at least 3 cases (fewer compiles as an
// if-else chain upstream in pkg/codegen). Returns true when a
// tableswitch's wasted slots (padding entries jumping to default) would
// stay under half the table, false when a sparse lookupswitch is cheaper.
func ShouldUseTableswitch(n int, low, high int64) bool {
	if n <= 0 {
		return false
	}
	rangeSize := high - low + 1
	if rangeSize <= 0 {
		return false // overflowed or degenerate range; lookupswitch is always safe
	}
	density := float64(n) / float64(rangeSize)
	return density >= 0.5
}

// BuildTableswitch emits a tableswitch instruction dispatching on the int
// discriminant already on the stack. Every entry in cases and
// defaultLabel must already be placed (spec.md §4.3: "the dispatch
// requires all targets already placed"); cases must be sorted by Value
// and cover every integer in [low, high] contiguously (gaps are filled by
// the caller with entries pointing at defaultLabel before calling this).
func (b *Builder) BuildTableswitch(defaultLabel *Label, low, high int64, cases []*Label) error {
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	if !defaultLabel.placed {
		return ErrUnplacedLabelAtDispatch
	}
	for _, l := range cases {
		if !l.placed {
			return ErrUnplacedLabelAtDispatch
		}
	}

	opcodePC := b.pc
	b.emit8(opTableswitch)
	b.padToAlign()

	b.emitU32(uint32(int32(defaultLabel.pc - opcodePC)))
	b.emitU32(uint32(int32(low)))
	b.emitU32(uint32(int32(high)))
	for _, l := range cases {
		b.emitU32(uint32(int32(l.pc - opcodePC)))
	}

	b.alive = false
	return nil
}

// BuildLookupswitch emits a lookupswitch instruction. entries must already
// be sorted ascending by Value (JVM spec requirement); every label,
// including defaultLabel, must already be placed.
func (b *Builder) BuildLookupswitch(defaultLabel *Label, entries []SwitchCaseLabel) error {
	if err := b.popExact(jvmtypes.CategoryInt); err != nil {
		return err
	}
	if !defaultLabel.placed {
		return ErrUnplacedLabelAtDispatch
	}

	sorted := append([]SwitchCaseLabel(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Value == sorted[i-1].Value {
			return ErrDuplicateSwitchCase
		}
	}
	for _, e := range sorted {
		if !e.Label.placed {
			return ErrUnplacedLabelAtDispatch
		}
	}

	opcodePC := b.pc
	b.emit8(opLookupswitch)
	b.padToAlign()

	b.emitU32(uint32(int32(defaultLabel.pc - opcodePC)))
	b.emitU32(uint32(len(sorted)))
	for _, e := range sorted {
		b.emitU32(uint32(int32(e.Value)))
		b.emitU32(uint32(int32(e.Label.pc - opcodePC)))
	}

	b.alive = false
	return nil
}

// padToAlign emits zero-padding so the next emitted byte sits at an
// offset that's a multiple of four from the start of the method's code
// array, as tableswitch/lookupswitch require.
func (b *Builder) padToAlign() {
	for b.pc%4 != 0 {
		b.emit8(0)
	}
}
