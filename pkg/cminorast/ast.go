// Package cminorast is the input data model for the code generator: a
// resolved, type-checked Cminor translation unit as handed down by the
// (external, out of scope) lexer/parser/semantic-analysis front end.
//
// Nothing in this package performs analysis. Every field here is assumed
// already resolved: types carry no dangling typedef aliases, identifiers
// are already bound to a Declaration/FunctionDeclaration/enum member, and
// parameter/local slot indices are pre-assigned. The code generator (C1-C5
// in spec.md) treats all of it as authoritative.
package cminorast

import "cminor.dev/jvmgen/pkg/utils"

// ----------------------------------------------------------------------------
// Types

// Kind enumerates the primitive and composite shapes a resolved Cminor type
// can take. It is the input to the C1 type & descriptor mapper.
type Kind string

const (
	KindVoid   Kind = "void"
	KindBool   Kind = "bool"
	KindChar   Kind = "char"
	KindShort  Kind = "short"
	KindInt    Kind = "int"
	KindLong   Kind = "long"
	KindFloat  Kind = "float"
	KindDouble Kind = "double"
	KindEnum   Kind = "enum"    // backed by int at runtime
	KindPointer Kind = "pointer" // Elem holds the pointee type
	KindArray   Kind = "array"   // Elem holds the element type, Len the fixed size (-1 if unknown)
	KindStruct  Kind = "struct"  // Name + Fields hold the member table
	KindUnion   Kind = "union"   // same shape as struct, members share storage at the source level
)

// TypeSpecifier is a fully resolved Cminor type. Invariant: no TypeSpecifier
// in a resolved AST refers to a typedef name directly — typedefs are
// resolved to their underlying Kind by semantic analysis before the code
// generator ever sees them. A TypeSpecifier whose Kind cannot be mapped
// (because it's still carrying a bare typedef alias) is a front-end bug
// and surfaces as jvmtypes.ErrUnresolvedTypedef.
type TypeSpecifier struct {
	Kind     Kind
	Unsigned bool // only meaningful for Char, Short, Int, Long

	Elem *TypeSpecifier // pointer/array element type
	Len  int            // array length; -1 if unknown (decays to a pointer)

	Name   string                                   // struct/union/enum tag, also the JVM class name
	Fields utils.OrderedMap[string, *Declaration]    // struct/union members, declaration order
}

// IsWide reports whether values of this type occupy two operand-stack/local
// slots on the JVM (Long, Double).
func (t *TypeSpecifier) IsWide() bool {
	return t.Kind == KindLong || t.Kind == KindDouble
}

// ----------------------------------------------------------------------------
// Declarations

// VarKind classifies where a Declaration's storage lives.
type VarKind string

const (
	VarLocal  VarKind = "local"  // a JVM local slot (or a heap-lift wrapper local)
	VarParam  VarKind = "param"  // a JVM parameter slot
	VarGlobal VarKind = "global" // a static field on ClassName
	VarField  VarKind = "field"  // an instance field on ClassName
)

// Declaration is any named, typed storage location: a local, a parameter, a
// struct/union member, a global, or a static/instance field.
type Declaration struct {
	Name string
	Type *TypeSpecifier
	Kind VarKind

	Slot          int  // pre-assigned local/parameter slot; -1 for globals and fields
	NeedsHeapLift bool // true iff this declaration's address is taken somewhere in its scope

	ClassName string // owning class, for VarGlobal/VarField
}

// ----------------------------------------------------------------------------
// Attributes

// AttributeKind names one of the JVM-intrinsic call shapes a declaration
// with no Cminor body can carry (spec.md §6, the attribute surface).
type AttributeKind string

const (
	AttrGetStatic     AttributeKind = "get_static"
	AttrGetField      AttributeKind = "get_field"
	AttrNew           AttributeKind = "new"
	AttrInvokeStatic  AttributeKind = "invoke_static"
	AttrInvokeVirtual AttributeKind = "invoke_virtual"
	AttrInvokeSpecial AttributeKind = "invoke_special"
	AttrArrayLength   AttributeKind = "arraylength"
	AttrAALoad        AttributeKind = "aaload"
)

// Attribute binds a FunctionDeclaration with no body to a single JVM
// instruction. Owner/Name/Descriptor are only meaningful for the
// Get*/Invoke* kinds; AttrNew only needs Owner (the class to instantiate);
// AttrArrayLength and AttrAALoad need none of the three.
type Attribute struct {
	Kind       AttributeKind
	Owner      string
	Name       string
	Descriptor string
}

// ----------------------------------------------------------------------------
// Functions

// FunctionDeclaration is a Cminor function: a flat parameter list (already
// slot-assigned), an optional body (absent exactly when Attributes carries
// a JVM-intrinsic binding), and variadic metadata.
type FunctionDeclaration struct {
	Name      string
	ClassName string

	Params      []Declaration
	Return      *TypeSpecifier
	IsVariadic  bool
	VarargsSlot int // slot reserved for the synthetic __varargs Object[]; only valid if IsVariadic

	Body       []Statement
	Attributes []Attribute
}

// TranslationUnit is everything the code generator needs to emit one JVM
// class: its static fields, its functions, and the struct/union
// definitions its types may reference.
type TranslationUnit struct {
	ClassName string
	Globals   []Declaration
	Structs   utils.OrderedMap[string, *TypeSpecifier]
	Functions []FunctionDeclaration
}

// ----------------------------------------------------------------------------
// Statements

// Statement is the shared marker interface for every Cminor statement
// shape; concrete types below are matched by C5 via an exhaustive type
// switch, one arm per constructor.
type Statement interface{ isStatement() }

type CompoundStmt struct{ Body []Statement } // a brace-delimited block; opens a slot-reuse region

type DeclStmt struct { // a local variable declaration, optionally with an initializer
	Decl Declaration
	Init Expression // nil if uninitialized
}

type ExprStmt struct{ Expr Expression } // an expression evaluated for its side effect; result is discarded

type IfStmt struct {
	Cond Expression
	Then []Statement
	Else []Statement // nil/empty if there is no else branch
}

type WhileStmt struct {
	Cond Expression
	Body []Statement
}

type DoWhileStmt struct {
	Body []Statement
	Cond Expression
}

type ForStmt struct {
	Init Statement  // nil if absent; never anything but DeclStmt/ExprStmt
	Cond Expression // nil means "always true"
	Post Expression // nil if absent
	Body []Statement
}

type SwitchCase struct {
	Value int64
	Body  []Statement
}

type SwitchStmt struct {
	Discriminant Expression
	Cases        []SwitchCase
	Default      []Statement // nil if the switch has no default
}

type BreakStmt struct{}
type ContinueStmt struct{}

type LabelStmt struct { // a `name:` label prefixing a statement
	Name string
	Stmt Statement
}

type GotoStmt struct{ Label string }

type ReturnStmt struct{ Expr Expression } // nil for a bare `return;` in a void function

func (CompoundStmt) isStatement()  {}
func (DeclStmt) isStatement()      {}
func (ExprStmt) isStatement()      {}
func (IfStmt) isStatement()        {}
func (WhileStmt) isStatement()     {}
func (DoWhileStmt) isStatement()   {}
func (ForStmt) isStatement()       {}
func (SwitchStmt) isStatement()    {}
func (BreakStmt) isStatement()     {}
func (ContinueStmt) isStatement()  {}
func (LabelStmt) isStatement()     {}
func (GotoStmt) isStatement()      {}
func (ReturnStmt) isStatement()    {}

// ----------------------------------------------------------------------------
// Expressions

// Expression is the shared marker interface for every Cminor expression
// shape.
type Expression interface{ isExpression() }

type IdentExpr struct { // a reference to a Declaration, resolved by name
	Name string
}

type IntLiteral struct {
	Type  *TypeSpecifier // Char, Short, Int, Long, Bool, or Enum
	Value int64
}

type FloatLiteral struct {
	Type  *TypeSpecifier // Float or Double
	Value float64
}

type NullLiteral struct{ Type *TypeSpecifier } // a pointer-typed null constant

type UnaryOp string

const (
	UnaryNeg UnaryOp = "neg"
	UnaryNot UnaryOp = "not" // logical/bitwise not, per operand type
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
}

type BinaryOp string

const (
	BinAdd BinaryOp = "add"
	BinSub BinaryOp = "sub"
	BinMul BinaryOp = "mul"
	BinDiv BinaryOp = "div"
	BinMod BinaryOp = "mod"

	BinAnd    BinaryOp = "and"
	BinOr     BinaryOp = "or"
	BinXor    BinaryOp = "xor"
	BinShl    BinaryOp = "shl"
	BinShr    BinaryOp = "shr" // arithmetic or logical, per signedness
	BinLogAnd BinaryOp = "log_and"
	BinLogOr  BinaryOp = "log_or"

	BinEq BinaryOp = "eq"
	BinNe BinaryOp = "ne"
	BinLt BinaryOp = "lt"
	BinLe BinaryOp = "le"
	BinGt BinaryOp = "gt"
	BinGe BinaryOp = "ge"
)

type BinaryExpr struct {
	Op  BinaryOp
	Lhs Expression
	Rhs Expression
}

type AssignOp string

const (
	AssignPlain AssignOp = "="
	AssignAdd   AssignOp = "+="
	AssignSub   AssignOp = "-="
	AssignMul   AssignOp = "*="
	AssignDiv   AssignOp = "/="
	AssignMod   AssignOp = "%="
	AssignAnd   AssignOp = "&="
	AssignOr    AssignOp = "|="
	AssignXor   AssignOp = "^="
	AssignShl   AssignOp = "<<="
	AssignShr   AssignOp = ">>="
)

type AssignExpr struct {
	Op  AssignOp
	Lhs Expression // IdentExpr, IndexExpr, MemberExpr, or DerefExpr
	Rhs Expression
}

type IncDecOp string

const (
	IncOp IncDecOp = "++"
	DecOp IncDecOp = "--"
)

type IncDecExpr struct {
	Op      IncDecOp
	Prefix  bool // true for ++x, false for x++
	Operand Expression
}

type IndexExpr struct { // arr[index] or ptr[index]
	Base  Expression
	Index Expression
}

type MemberExpr struct { // obj.field
	Base  Expression
	Field string
}

type AddrOfExpr struct{ Operand Expression } // &x; Operand must resolve to a heap-lifted local/param

type DerefExpr struct{ Operand Expression } // *p

type CastExpr struct {
	Type    *TypeSpecifier
	Operand Expression
}

type TernaryExpr struct {
	Cond Expression
	Then Expression
	Else Expression
}

type CallExpr struct {
	Callee    *FunctionDeclaration
	Receiver  Expression // non-nil for `obj.method(...)`; nil for free function calls
	Args      []Expression
}

// SizeofExpr only ever appears as calloc's second argument; semantic
// analysis has already resolved it to a concrete type.
type SizeofExpr struct{ Type *TypeSpecifier }

// VaStartExpr, VaArgExpr and VaEndExpr are the three built-in varargs
// expansions (spec.md §4.4); they are syntactically call-shaped in source
// but are never real calls, so the resolved AST carries them as distinct
// node kinds instead of CallExpr.
type VaStartExpr struct{ Ap Expression }
type VaArgExpr struct {
	Ap   Expression
	Type *TypeSpecifier
}
type VaEndExpr struct{ Ap Expression }

func (IdentExpr) isExpression()   {}
func (IntLiteral) isExpression()  {}
func (FloatLiteral) isExpression() {}
func (NullLiteral) isExpression() {}
func (UnaryExpr) isExpression()   {}
func (BinaryExpr) isExpression()  {}
func (AssignExpr) isExpression()  {}
func (IncDecExpr) isExpression()  {}
func (IndexExpr) isExpression()   {}
func (MemberExpr) isExpression()  {}
func (AddrOfExpr) isExpression()  {}
func (DerefExpr) isExpression()   {}
func (CastExpr) isExpression()    {}
func (TernaryExpr) isExpression() {}
func (CallExpr) isExpression()    {}
func (SizeofExpr) isExpression()  {}
func (VaStartExpr) isExpression() {}
func (VaArgExpr) isExpression()   {}
func (VaEndExpr) isExpression()   {}
