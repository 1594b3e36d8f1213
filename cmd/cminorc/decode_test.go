package main

import (
	"testing"

	"cminor.dev/jvmgen/pkg/cminorast"
)

const sampleFixture = `{
	"class_name": "Example",
	"globals": [
		{"name": "counter", "type": {"kind": "int"}, "var_kind": "global", "slot": -1}
	],
	"functions": [
		{
			"name": "increment",
			"class_name": "Example",
			"params": [
				{"name": "amount", "type": {"kind": "int"}, "var_kind": "param", "slot": 0}
			],
			"return": {"kind": "void"},
			"body": [
				{
					"kind": "expr",
					"expr": {
						"kind": "assign",
						"op": "+=",
						"lhs": {"kind": "ident", "name": "counter"},
						"rhs": {"kind": "ident", "name": "amount"}
					}
				},
				{
					"kind": "if",
					"cond": {
						"kind": "binary",
						"op": "gt",
						"lhs": {"kind": "ident", "name": "counter"},
						"rhs": {"kind": "int_literal", "type": {"kind": "int"}, "value": 100}
					},
					"then": [
						{"kind": "return", "expr": null}
					],
					"else": []
				}
			]
		},
		{
			"name": "main",
			"class_name": "Example",
			"params": [],
			"return": {"kind": "void"},
			"body": [
				{
					"kind": "expr",
					"expr": {
						"kind": "call",
						"callee": "increment",
						"receiver": null,
						"args": [
							{"kind": "int_literal", "type": {"kind": "int"}, "value": 1}
						]
					}
				}
			]
		}
	]
}`

func TestDecodeTranslationUnitGlobalsAndFunctions(t *testing.T) {
	tu, err := decodeTranslationUnit([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("decodeTranslationUnit: %v", err)
	}

	if tu.ClassName != "Example" {
		t.Fatalf("ClassName = %q, want Example", tu.ClassName)
	}
	if len(tu.Globals) != 1 || tu.Globals[0].Name != "counter" {
		t.Fatalf("Globals = %+v, want one declaration named counter", tu.Globals)
	}
	if len(tu.Functions) != 2 {
		t.Fatalf("Functions = %d, want 2", len(tu.Functions))
	}
}

func TestDecodeTranslationUnitResolvesCalleeByPointer(t *testing.T) {
	tu, err := decodeTranslationUnit([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("decodeTranslationUnit: %v", err)
	}

	var main *cminorast.FunctionDeclaration
	for i := range tu.Functions {
		if tu.Functions[i].Name == "main" {
			main = &tu.Functions[i]
		}
	}
	if main == nil {
		t.Fatalf("main function not found")
	}
	if len(main.Body) != 1 {
		t.Fatalf("main.Body = %d statements, want 1", len(main.Body))
	}

	exprStmt, ok := main.Body[0].(cminorast.ExprStmt)
	if !ok {
		t.Fatalf("main.Body[0] = %T, want ExprStmt", main.Body[0])
	}
	call, ok := exprStmt.Expr.(cminorast.CallExpr)
	if !ok {
		t.Fatalf("ExprStmt.Expr = %T, want CallExpr", exprStmt.Expr)
	}
	if call.Callee == nil || call.Callee.Name != "increment" {
		t.Fatalf("CallExpr.Callee = %+v, want function named increment", call.Callee)
	}
	// The callee must be the very same *FunctionDeclaration backing
	// tu.Functions, not a freshly decoded copy.
	if call.Callee != &tu.Functions[0] {
		t.Fatalf("CallExpr.Callee does not point into tu.Functions")
	}
}

func TestDecodeTranslationUnitNestedControlFlow(t *testing.T) {
	tu, err := decodeTranslationUnit([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("decodeTranslationUnit: %v", err)
	}

	var increment *cminorast.FunctionDeclaration
	for i := range tu.Functions {
		if tu.Functions[i].Name == "increment" {
			increment = &tu.Functions[i]
		}
	}
	if increment == nil {
		t.Fatalf("increment function not found")
	}
	if len(increment.Body) != 2 {
		t.Fatalf("increment.Body = %d statements, want 2", len(increment.Body))
	}

	ifStmt, ok := increment.Body[1].(cminorast.IfStmt)
	if !ok {
		t.Fatalf("increment.Body[1] = %T, want IfStmt", increment.Body[1])
	}
	if len(ifStmt.Then) != 1 {
		t.Fatalf("IfStmt.Then = %d statements, want 1", len(ifStmt.Then))
	}
	if _, ok := ifStmt.Then[0].(cminorast.ReturnStmt); !ok {
		t.Fatalf("IfStmt.Then[0] = %T, want ReturnStmt", ifStmt.Then[0])
	}
	if len(ifStmt.Else) != 0 {
		t.Fatalf("IfStmt.Else = %d statements, want 0", len(ifStmt.Else))
	}
}

func TestDecodeTranslationUnitUnknownCalleeErrors(t *testing.T) {
	const bad = `{
		"class_name": "Bad",
		"functions": [
			{
				"name": "main",
				"class_name": "Bad",
				"return": {"kind": "void"},
				"body": [
					{"kind": "expr", "expr": {"kind": "call", "callee": "nope", "args": []}}
				]
			}
		]
	}`
	if _, err := decodeTranslationUnit([]byte(bad)); err == nil {
		t.Fatalf("expected an error for a call to an unresolved function")
	}
}
