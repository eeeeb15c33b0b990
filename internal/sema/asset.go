package sema

import "github.com/arkade-os/arkade-script/internal/ast"

// lookupSite records the method name of a call whose first argument is an
// asset-id: a method call `X.find(seed)`/`X.lookup(seed)` reached through
// a FieldExpr chain rooted at tx.assetGroups, tx.inputs[i].assets, or
// tx.outputs[o].assets.
type lookupSite struct {
	method string // "find" or "lookup"
}

// FindAssetIDSeeds scans every function body (constructor params are
// shared across all functions, so the seed set is contract-wide) and
// returns the set of bytes32 constructor parameter names used as the
// first argument to an asset-lookup call. Per spec, only bytes32
// constructor parameters can be seeds; a bytes32 witness parameter used
// the same way is left alone (it isn't part of the constructor ABI that
// gets flattened).
func FindAssetIDSeeds(c *ast.Contract) map[string]bool {
	seeds := map[string]bool{}
	isBytes32Param := map[string]bool{}
	for _, p := range c.Params {
		if !p.Type.IsArray && p.Type.Base == "bytes32" {
			isBytes32Param[p.Name] = true
		}
	}
	for _, fn := range c.Functions {
		walkStatements(fn.Body, func(e ast.Expr) {
			call, ok := e.(*ast.CallExpr)
			if !ok {
				return
			}
			fe, ok := call.Callee.(*ast.FieldExpr)
			if !ok || (fe.Field != "find" && fe.Field != "lookup") {
				return
			}
			if !isAssetLookupReceiver(fe.X) || len(call.Args) == 0 {
				return
			}
			if id, ok := call.Args[0].(*ast.Ident); ok && isBytes32Param[id.Name] {
				seeds[id.Name] = true
			}
		})
	}
	return seeds
}

// isAssetLookupReceiver recognizes tx.assetGroups, tx.inputs[i].assets,
// and tx.outputs[o].assets as the receiver of a .find/.lookup call.
func isAssetLookupReceiver(x ast.Expr) bool {
	switch r := x.(type) {
	case *ast.FieldExpr:
		if r.Field == "assetGroups" {
			if id, ok := r.X.(*ast.Ident); ok && id.Name == "tx" {
				return true
			}
		}
		if r.Field == "assets" {
			if idx, ok := r.X.(*ast.IndexExpr); ok {
				if base, ok := idx.X.(*ast.FieldExpr); ok && (base.Field == "inputs" || base.Field == "outputs") {
					if id, ok := base.X.(*ast.Ident); ok && id.Name == "tx" {
						return true
					}
				}
			}
		}
	}
	return false
}

// walkStatements visits every expression reachable from stmts, including
// nested if/for blocks, calling visit on each.
func walkStatements(stmts []ast.Statement, visit func(ast.Expr)) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.RequireStmt:
			walkExpr(st.Cond, visit)
		case *ast.LetStmt:
			walkExpr(st.Value, visit)
		case *ast.AssignStmt:
			walkExpr(st.Value, visit)
		case *ast.IfStmt:
			walkExpr(st.Cond, visit)
			walkStatements(st.Then, visit)
			walkStatements(st.Else, visit)
		case *ast.ForStmt:
			walkExpr(st.Iterable, visit)
			walkStatements(st.Body, visit)
		case *ast.ExprStmt:
			walkExpr(st.X, visit)
		}
	}
}

func walkExpr(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch x := e.(type) {
	case *ast.ArrayLit:
		for _, el := range x.Elems {
			walkExpr(el, visit)
		}
	case *ast.IndexExpr:
		walkExpr(x.X, visit)
		walkExpr(x.Index, visit)
	case *ast.FieldExpr:
		walkExpr(x.X, visit)
	case *ast.CallExpr:
		walkExpr(x.Callee, visit)
		for _, a := range x.Args {
			walkExpr(a, visit)
		}
	case *ast.NewExpr:
		for _, a := range x.Args {
			walkExpr(a, visit)
		}
	case *ast.UnaryExpr:
		walkExpr(x.X, visit)
	case *ast.BinaryExpr:
		walkExpr(x.Left, visit)
		walkExpr(x.Right, visit)
	}
}

// SeedFieldNames returns the two constructor-ABI entry names an asset-id
// seed decomposes into, in emission order.
func SeedFieldNames(paramName string) (txid, gidx string) {
	return paramName + "_txid", paramName + "_gidx"
}
