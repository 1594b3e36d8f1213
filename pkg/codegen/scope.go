package codegen

import "cminor.dev/jvmgen/pkg/cminorast"

// Scope is a chain of name -> declaration bindings, one link per
// compound-statement block. Lookup walks outward from the innermost
// block to the function's parameters, matching ordinary C block-scoping
// rules; the class's globals are not in the chain (resolveIdent falls
// back to them).
type Scope struct {
	parent *Scope
	vars   map[string]*cminorast.Declaration
}

// NewScope opens a fresh child scope under parent (nil for the outermost
// function scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: map[string]*cminorast.Declaration{}}
}

// Define binds name to d in this scope. A DeclStmt re-declaring a name
// already bound deeper in the same scope simply shadows it; Cminor's
// semantic analysis is assumed to have already rejected illegal
// redeclaration within one block.
func (s *Scope) Define(d *cminorast.Declaration) {
	s.vars[d.Name] = d
}

// Lookup walks outward from s, returning the nearest binding for name.
func (s *Scope) Lookup(name string) (*cminorast.Declaration, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.vars[name]; ok {
			return d, true
		}
	}
	return nil, false
}
