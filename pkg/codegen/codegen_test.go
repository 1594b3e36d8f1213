package codegen

import (
	"testing"

	"cminor.dev/jvmgen/pkg/cminorast"
)

func intType() *cminorast.TypeSpecifier  { return &cminorast.TypeSpecifier{Kind: cminorast.KindInt} }
func voidType() *cminorast.TypeSpecifier { return &cminorast.TypeSpecifier{Kind: cminorast.KindVoid} }

func intLit(v int64) cminorast.IntLiteral {
	return cminorast.IntLiteral{Type: intType(), Value: v}
}

// TestGenerateClassBinaryExpression compiles `return a + b;` and checks the
// generated code ends in an int-returning sequence with no leftover value on
// the stack at the point of return.
func TestGenerateClassBinaryExpression(t *testing.T) {
	fn := cminorast.FunctionDeclaration{
		Name:   "add",
		Return: intType(),
		Params: []cminorast.Declaration{
			{Name: "a", Type: intType(), Kind: cminorast.VarParam, Slot: 0},
			{Name: "b", Type: intType(), Kind: cminorast.VarParam, Slot: 1},
		},
		Body: []cminorast.Statement{
			cminorast.ReturnStmt{
				Expr: cminorast.BinaryExpr{
					Op:  cminorast.BinAdd,
					Lhs: cminorast.IdentExpr{Name: "a"},
					Rhs: cminorast.IdentExpr{Name: "b"},
				},
			},
		},
	}
	tu := &cminorast.TranslationUnit{ClassName: "Example", Functions: []cminorast.FunctionDeclaration{fn}}

	class, err := NewGenerator().GenerateClass(tu)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	if len(class.Methods) != 1 {
		t.Fatalf("Methods = %d, want 1", len(class.Methods))
	}

	m := class.Methods[0]
	code := m.Code
	if len(code) == 0 {
		t.Fatalf("Code is empty")
	}
	if last := code[len(code)-1]; last != 0xac { // ireturn
		t.Fatalf("last opcode = %#x, want ireturn (0xac)", last)
	}
	if !containsByte(code, 0x60) { // iadd
		t.Fatalf("code %v does not contain iadd (0x60)", code)
	}
	if m.MaxLocals < 2 {
		t.Fatalf("MaxLocals = %d, want at least 2 for two int params", m.MaxLocals)
	}
}

// TestGenerateClassAssignmentToGlobal compiles `counter = counter + amount;`
// against a global and checks the emitted code uses Getstatic/Putstatic
// rather than local load/store.
func TestGenerateClassAssignmentToGlobal(t *testing.T) {
	fn := cminorast.FunctionDeclaration{
		Name:   "increment",
		Return: voidType(),
		Params: []cminorast.Declaration{
			{Name: "amount", Type: intType(), Kind: cminorast.VarParam, Slot: 0},
		},
		Body: []cminorast.Statement{
			cminorast.ExprStmt{
				Expr: cminorast.AssignExpr{
					Op:  cminorast.AssignPlain,
					Lhs: cminorast.IdentExpr{Name: "counter"},
					Rhs: cminorast.BinaryExpr{
						Op:  cminorast.BinAdd,
						Lhs: cminorast.IdentExpr{Name: "counter"},
						Rhs: cminorast.IdentExpr{Name: "amount"},
					},
				},
			},
		},
	}
	tu := &cminorast.TranslationUnit{
		ClassName: "Example",
		Globals: []cminorast.Declaration{
			{Name: "counter", Type: intType(), Kind: cminorast.VarGlobal, Slot: -1, ClassName: "Example"},
		},
		Functions: []cminorast.FunctionDeclaration{fn},
	}

	class, err := NewGenerator().GenerateClass(tu)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}

	code := class.Methods[0].Code
	if !containsByte(code, 0xb2) { // getstatic
		t.Fatalf("code %v does not contain getstatic (0xb2)", code)
	}
	if !containsByte(code, 0xb3) { // putstatic
		t.Fatalf("code %v does not contain putstatic (0xb3)", code)
	}
	if last := code[len(code)-1]; last != 0xb1 { // return
		t.Fatalf("last opcode = %#x, want return (0xb1)", last)
	}
}

// TestGenerateClassCallExpression compiles a call to a sibling function and
// checks the invokestatic opcode is emitted with the callee's descriptor.
func TestGenerateClassCallExpression(t *testing.T) {
	callee := cminorast.FunctionDeclaration{
		Name:      "double_it",
		ClassName: "Example",
		Return:    intType(),
		Params: []cminorast.Declaration{
			{Name: "x", Type: intType(), Kind: cminorast.VarParam, Slot: 0},
		},
		Body: []cminorast.Statement{
			cminorast.ReturnStmt{
				Expr: cminorast.BinaryExpr{
					Op:  cminorast.BinAdd,
					Lhs: cminorast.IdentExpr{Name: "x"},
					Rhs: cminorast.IdentExpr{Name: "x"},
				},
			},
		},
	}
	caller := cminorast.FunctionDeclaration{
		Name:      "main",
		ClassName: "Example",
		Return:    voidType(),
		Body: []cminorast.Statement{
			cminorast.ExprStmt{
				Expr: cminorast.CallExpr{
					Callee: &callee,
					Args:   []cminorast.Expression{intLit(21)},
				},
			},
		},
	}
	tu := &cminorast.TranslationUnit{
		ClassName: "Example",
		Functions: []cminorast.FunctionDeclaration{callee, caller},
	}

	class, err := NewGenerator().GenerateClass(tu)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	if len(class.Methods) != 2 {
		t.Fatalf("Methods = %d, want 2", len(class.Methods))
	}

	var mainMethod *Method
	for i := range class.Methods {
		if class.Methods[i].Name == "main" {
			mainMethod = &class.Methods[i]
		}
	}
	if mainMethod == nil {
		t.Fatalf("main method not found")
	}
	if !containsByte(mainMethod.Code, 0xb8) { // invokestatic
		t.Fatalf("code %v does not contain invokestatic (0xb8)", mainMethod.Code)
	}
	// A non-void call result discarded as a statement must be popped.
	if !containsByte(mainMethod.Code, 0x57) { // pop
		t.Fatalf("code %v does not pop the discarded call result", mainMethod.Code)
	}
}

// TestGenerateClassIfElseProducesReachableBranches checks an if/else over
// an int comparison compiles without error and both branches return.
func TestGenerateClassIfElseProducesReachableBranches(t *testing.T) {
	fn := cminorast.FunctionDeclaration{
		Name:   "sign",
		Return: intType(),
		Params: []cminorast.Declaration{
			{Name: "x", Type: intType(), Kind: cminorast.VarParam, Slot: 0},
		},
		Body: []cminorast.Statement{
			cminorast.IfStmt{
				Cond: cminorast.BinaryExpr{
					Op:  cminorast.BinLt,
					Lhs: cminorast.IdentExpr{Name: "x"},
					Rhs: intLit(0),
				},
				Then: []cminorast.Statement{
					cminorast.ReturnStmt{Expr: intLit(-1)},
				},
				Else: []cminorast.Statement{
					cminorast.ReturnStmt{Expr: intLit(1)},
				},
			},
		},
	}
	tu := &cminorast.TranslationUnit{ClassName: "Example", Functions: []cminorast.FunctionDeclaration{fn}}

	class, err := NewGenerator().GenerateClass(tu)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	m := class.Methods[0]
	if len(m.Code) == 0 {
		t.Fatalf("Code is empty")
	}
	// Both branches return; control never falls through past the if, so no
	// trailing synthesized fallthrough return should be appended beyond the
	// two explicit ireturns already present.
	count := 0
	for _, b := range m.Code {
		if b == 0xac {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("ireturn count = %d, want 2 (one per branch)", count)
	}
}

func TestGenerateClassVoidFallthroughReturn(t *testing.T) {
	fn := cminorast.FunctionDeclaration{
		Name:   "noop",
		Return: voidType(),
		Body:   []cminorast.Statement{},
	}
	tu := &cminorast.TranslationUnit{ClassName: "Example", Functions: []cminorast.FunctionDeclaration{fn}}

	class, err := NewGenerator().GenerateClass(tu)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	code := class.Methods[0].Code
	if len(code) != 1 || code[0] != 0xb1 {
		t.Fatalf("code = %v, want a bare [0xb1] fallthrough return", code)
	}
}

func containsByte(code []byte, b byte) bool {
	for _, v := range code {
		if v == b {
			return true
		}
	}
	return false
}
