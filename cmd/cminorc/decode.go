package main

import (
	"encoding/json"
	"fmt"

	"cminor.dev/jvmgen/pkg/cminorast"
)

// decoder carries the lookup table CallExpr.Callee resolution needs: every
// function in the translation unit, body-less or not, keyed by name.
type decoder struct {
	byName map[string]*cminorast.FunctionDeclaration
}

type nodeEnvelope struct {
	Kind string `json:"kind"`
}

func (d *decoder) stmtList(raw []json.RawMessage) ([]cminorast.Statement, error) {
	out := make([]cminorast.Statement, len(raw))
	for i, r := range raw {
		s, err := d.stmt(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (d *decoder) stmtOpt(raw json.RawMessage) (cminorast.Statement, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return d.stmt(raw)
}

func (d *decoder) stmt(raw json.RawMessage) (cminorast.Statement, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("statement envelope: %w", err)
	}

	switch env.Kind {
	case "compound":
		var fx struct {
			Body []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		body, err := d.stmtList(fx.Body)
		if err != nil {
			return nil, err
		}
		return cminorast.CompoundStmt{Body: body}, nil

	case "decl":
		var fx struct {
			Decl declFixture     `json:"decl"`
			Init json.RawMessage `json:"init"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		init, err := d.exprOpt(fx.Init)
		if err != nil {
			return nil, err
		}
		return cminorast.DeclStmt{Decl: *toDecl(fx.Decl), Init: init}, nil

	case "expr":
		var fx struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		e, err := d.expr(fx.Expr)
		if err != nil {
			return nil, err
		}
		return cminorast.ExprStmt{Expr: e}, nil

	case "if":
		var fx struct {
			Cond json.RawMessage   `json:"cond"`
			Then []json.RawMessage `json:"then"`
			Else []json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		cond, err := d.expr(fx.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.stmtList(fx.Then)
		if err != nil {
			return nil, err
		}
		els, err := d.stmtList(fx.Else)
		if err != nil {
			return nil, err
		}
		return cminorast.IfStmt{Cond: cond, Then: then, Else: els}, nil

	case "while":
		var fx struct {
			Cond json.RawMessage   `json:"cond"`
			Body []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		cond, err := d.expr(fx.Cond)
		if err != nil {
			return nil, err
		}
		body, err := d.stmtList(fx.Body)
		if err != nil {
			return nil, err
		}
		return cminorast.WhileStmt{Cond: cond, Body: body}, nil

	case "do_while":
		var fx struct {
			Body []json.RawMessage `json:"body"`
			Cond json.RawMessage   `json:"cond"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		body, err := d.stmtList(fx.Body)
		if err != nil {
			return nil, err
		}
		cond, err := d.expr(fx.Cond)
		if err != nil {
			return nil, err
		}
		return cminorast.DoWhileStmt{Body: body, Cond: cond}, nil

	case "for":
		var fx struct {
			Init json.RawMessage   `json:"init"`
			Cond json.RawMessage   `json:"cond"`
			Post json.RawMessage   `json:"post"`
			Body []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		init, err := d.stmtOpt(fx.Init)
		if err != nil {
			return nil, err
		}
		cond, err := d.exprOpt(fx.Cond)
		if err != nil {
			return nil, err
		}
		post, err := d.exprOpt(fx.Post)
		if err != nil {
			return nil, err
		}
		body, err := d.stmtList(fx.Body)
		if err != nil {
			return nil, err
		}
		return cminorast.ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil

	case "switch":
		var fx struct {
			Discriminant json.RawMessage `json:"discriminant"`
			Cases        []struct {
				Value int64             `json:"value"`
				Body  []json.RawMessage `json:"body"`
			} `json:"cases"`
			Default []json.RawMessage `json:"default"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		disc, err := d.expr(fx.Discriminant)
		if err != nil {
			return nil, err
		}
		cases := make([]cminorast.SwitchCase, len(fx.Cases))
		for i, c := range fx.Cases {
			body, err := d.stmtList(c.Body)
			if err != nil {
				return nil, err
			}
			cases[i] = cminorast.SwitchCase{Value: c.Value, Body: body}
		}
		def, err := d.stmtList(fx.Default)
		if err != nil {
			return nil, err
		}
		return cminorast.SwitchStmt{Discriminant: disc, Cases: cases, Default: def}, nil

	case "break":
		return cminorast.BreakStmt{}, nil

	case "continue":
		return cminorast.ContinueStmt{}, nil

	case "label":
		var fx struct {
			Name string          `json:"name"`
			Stmt json.RawMessage `json:"stmt"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		inner, err := d.stmt(fx.Stmt)
		if err != nil {
			return nil, err
		}
		return cminorast.LabelStmt{Name: fx.Name, Stmt: inner}, nil

	case "goto":
		var fx struct {
			Label string `json:"label"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.GotoStmt{Label: fx.Label}, nil

	case "return":
		var fx struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		e, err := d.exprOpt(fx.Expr)
		if err != nil {
			return nil, err
		}
		return cminorast.ReturnStmt{Expr: e}, nil

	default:
		return nil, fmt.Errorf("unknown statement kind %q", env.Kind)
	}
}

func (d *decoder) exprList(raw []json.RawMessage) ([]cminorast.Expression, error) {
	out := make([]cminorast.Expression, len(raw))
	for i, r := range raw {
		e, err := d.expr(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) exprOpt(raw json.RawMessage) (cminorast.Expression, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return d.expr(raw)
}

func (d *decoder) expr(raw json.RawMessage) (cminorast.Expression, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("expression envelope: %w", err)
	}

	switch env.Kind {
	case "ident":
		var fx struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.IdentExpr{Name: fx.Name}, nil

	case "int_literal":
		var fx struct {
			Type  typeFixture `json:"type"`
			Value int64       `json:"value"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.IntLiteral{Type: toType(fx.Type), Value: fx.Value}, nil

	case "float_literal":
		var fx struct {
			Type  typeFixture `json:"type"`
			Value float64     `json:"value"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.FloatLiteral{Type: toType(fx.Type), Value: fx.Value}, nil

	case "null_literal":
		var fx struct {
			Type typeFixture `json:"type"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.NullLiteral{Type: toType(fx.Type)}, nil

	case "unary":
		var fx struct {
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		operand, err := d.expr(fx.Operand)
		if err != nil {
			return nil, err
		}
		return cminorast.UnaryExpr{Op: cminorast.UnaryOp(fx.Op), Operand: operand}, nil

	case "binary":
		var fx struct {
			Op  string          `json:"op"`
			Lhs json.RawMessage `json:"lhs"`
			Rhs json.RawMessage `json:"rhs"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		lhs, err := d.expr(fx.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := d.expr(fx.Rhs)
		if err != nil {
			return nil, err
		}
		return cminorast.BinaryExpr{Op: cminorast.BinaryOp(fx.Op), Lhs: lhs, Rhs: rhs}, nil

	case "assign":
		var fx struct {
			Op  string          `json:"op"`
			Lhs json.RawMessage `json:"lhs"`
			Rhs json.RawMessage `json:"rhs"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		lhs, err := d.expr(fx.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := d.expr(fx.Rhs)
		if err != nil {
			return nil, err
		}
		return cminorast.AssignExpr{Op: cminorast.AssignOp(fx.Op), Lhs: lhs, Rhs: rhs}, nil

	case "incdec":
		var fx struct {
			Op      string          `json:"op"`
			Prefix  bool            `json:"prefix"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		operand, err := d.expr(fx.Operand)
		if err != nil {
			return nil, err
		}
		return cminorast.IncDecExpr{Op: cminorast.IncDecOp(fx.Op), Prefix: fx.Prefix, Operand: operand}, nil

	case "index":
		var fx struct {
			Base  json.RawMessage `json:"base"`
			Index json.RawMessage `json:"index"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		base, err := d.expr(fx.Base)
		if err != nil {
			return nil, err
		}
		index, err := d.expr(fx.Index)
		if err != nil {
			return nil, err
		}
		return cminorast.IndexExpr{Base: base, Index: index}, nil

	case "member":
		var fx struct {
			Base  json.RawMessage `json:"base"`
			Field string          `json:"field"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		base, err := d.expr(fx.Base)
		if err != nil {
			return nil, err
		}
		return cminorast.MemberExpr{Base: base, Field: fx.Field}, nil

	case "addrof":
		var fx struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		operand, err := d.expr(fx.Operand)
		if err != nil {
			return nil, err
		}
		return cminorast.AddrOfExpr{Operand: operand}, nil

	case "deref":
		var fx struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		operand, err := d.expr(fx.Operand)
		if err != nil {
			return nil, err
		}
		return cminorast.DerefExpr{Operand: operand}, nil

	case "cast":
		var fx struct {
			Type    typeFixture     `json:"type"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		operand, err := d.expr(fx.Operand)
		if err != nil {
			return nil, err
		}
		return cminorast.CastExpr{Type: toType(fx.Type), Operand: operand}, nil

	case "ternary":
		var fx struct {
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		cond, err := d.expr(fx.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.expr(fx.Then)
		if err != nil {
			return nil, err
		}
		els, err := d.expr(fx.Else)
		if err != nil {
			return nil, err
		}
		return cminorast.TernaryExpr{Cond: cond, Then: then, Else: els}, nil

	case "call":
		var fx struct {
			Callee   string            `json:"callee"`
			Receiver json.RawMessage   `json:"receiver"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		callee, ok := d.byName[fx.Callee]
		if !ok {
			return nil, fmt.Errorf("call to unresolved function %q", fx.Callee)
		}
		receiver, err := d.exprOpt(fx.Receiver)
		if err != nil {
			return nil, err
		}
		args, err := d.exprList(fx.Args)
		if err != nil {
			return nil, err
		}
		return cminorast.CallExpr{Callee: callee, Receiver: receiver, Args: args}, nil

	case "sizeof":
		var fx struct {
			Type typeFixture `json:"type"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		return cminorast.SizeofExpr{Type: toType(fx.Type)}, nil

	case "va_start":
		var fx struct {
			Ap json.RawMessage `json:"ap"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		ap, err := d.expr(fx.Ap)
		if err != nil {
			return nil, err
		}
		return cminorast.VaStartExpr{Ap: ap}, nil

	case "va_arg":
		var fx struct {
			Ap   json.RawMessage `json:"ap"`
			Type typeFixture     `json:"type"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		ap, err := d.expr(fx.Ap)
		if err != nil {
			return nil, err
		}
		return cminorast.VaArgExpr{Ap: ap, Type: toType(fx.Type)}, nil

	case "va_end":
		var fx struct {
			Ap json.RawMessage `json:"ap"`
		}
		if err := json.Unmarshal(raw, &fx); err != nil {
			return nil, err
		}
		ap, err := d.expr(fx.Ap)
		if err != nil {
			return nil, err
		}
		return cminorast.VaEndExpr{Ap: ap}, nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", env.Kind)
	}
}
