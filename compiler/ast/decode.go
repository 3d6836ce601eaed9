package ast

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type (
	decoder struct {
		name string
	}
)

var stmtKinds = []string{"namespace", "func", "extern", "struct", "var", "set", "if", "while", "for", "call", "return", "expr"}

// Decode reads a File written as YAML: a sequence of statements,
// each a mapping keyed by its node kind.
func Decode(name string, data []byte) (*File, error) {
	var root yaml.Node

	err := yaml.Unmarshal(data, &root)
	if err != nil {
		return nil, errors.Wrap(err, "yaml")
	}

	d := &decoder{name: name}
	f := &File{Name: name}

	if root.Kind == 0 {
		return f, nil
	}

	n := &root
	if n.Kind == yaml.DocumentNode {
		n = n.Content[0]
	}

	f.Stmts, err = d.stmts(n)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (d *decoder) stmts(n *yaml.Node) (l []Stmt, err error) {
	if n == nil || isNull(n) {
		return nil, nil
	}

	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "statement list expected")
	}

	for _, x := range n.Content {
		s, err := d.stmt(x)
		if err != nil {
			return nil, err
		}

		l = append(l, s)
	}

	return l, nil
}

func (d *decoder) block(n *yaml.Node) (*Block, error) {
	if n == nil {
		return nil, nil
	}

	l, err := d.stmts(n)
	if err != nil {
		return nil, err
	}

	return &Block{Base: span(n), Stmts: l}, nil
}

func (d *decoder) stmt(n *yaml.Node) (s Stmt, err error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "statement must be a mapping")
	}

	kind, v := d.kind(n, stmtKinds)
	b := span(n)

	switch kind {
	case "namespace":
		x := &Namespace{Base: b, Name: v.Value}
		x.Stmts, err = d.stmts(get(n, "body"))

		return x, err
	case "func":
		x := &FuncDecl{Base: b, Name: v.Value, Public: d.flag(n, "public")}

		x.Params, err = d.params(get(n, "params"))
		if err != nil {
			return nil, err
		}

		x.Ret = d.typ(get(n, "ret"))
		x.Body, err = d.block(get(n, "body"))

		return x, err
	case "extern":
		x := &Extern{Base: b, Name: v.Value, Var: d.flag(n, "var")}

		x.Params, err = d.params(get(n, "params"))
		if err != nil {
			return nil, err
		}

		x.Ret = d.typ(get(n, "ret"))
		if x.Var {
			x.Ret = d.typ(get(n, "type"))
		}

		return x, nil
	case "struct":
		x := &StructDecl{Base: b, Name: v.Value, Public: d.flag(n, "public"), Packed: d.flag(n, "packed")}

		fs := get(n, "fields")
		if fs == nil {
			return x, nil
		}

		for _, f := range fs.Content {
			x.Fields = append(x.Fields, FieldDecl{
				Base:   span(f),
				Name:   str(get(f, "name")),
				Type:   d.typ(get(f, "type")),
				Public: d.flag(f, "public"),
			})
		}

		return x, nil
	case "var":
		x := &VarDecl{Base: b, Name: v.Value, Type: d.typ(get(n, "type"))}
		x.Init, err = d.optExpr(get(n, "init"))

		return x, err
	case "set":
		x := &Reassign{Base: b, Name: v.Value, Op: str(get(n, "op"))}
		if x.Op == "" {
			x.Op = "="
		}

		x.Value, err = d.expr(get(n, "value"))

		return x, err
	case "if":
		x := &If{Base: b}

		x.Cond, err = d.expr(v)
		if err != nil {
			return nil, err
		}

		x.Then, err = d.block(get(n, "then"))
		if err != nil {
			return nil, err
		}

		if el := get(n, "elif"); el != nil {
			for _, e := range el.Content {
				var arm ElseIf

				arm.Cond, err = d.expr(get(e, "cond"))
				if err != nil {
					return nil, err
				}

				arm.Then, err = d.block(get(e, "then"))
				if err != nil {
					return nil, err
				}

				x.Elifs = append(x.Elifs, arm)
			}
		}

		x.Else, err = d.block(get(n, "else"))

		return x, err
	case "while":
		x := &While{Base: b}

		x.Cond, err = d.expr(v)
		if err != nil {
			return nil, err
		}

		x.Body, err = d.block(get(n, "body"))

		return x, err
	case "for":
		x := &For{Base: b, Var: v.Value}

		x.Start, err = d.expr(get(n, "from"))
		if err != nil {
			return nil, err
		}

		x.End, err = d.expr(get(n, "to"))
		if err != nil {
			return nil, err
		}

		x.Step, err = d.optExpr(get(n, "step"))
		if err != nil {
			return nil, err
		}

		x.Body, err = d.block(get(n, "body"))

		return x, err
	case "call":
		c, err := d.call(n, v)
		if err != nil {
			return nil, err
		}

		return &CallStmt{Base: b, Call: c}, nil
	case "return":
		x := &Return{Base: b}
		x.Value, err = d.optExpr(v)

		return x, err
	case "expr":
		x := &ExprStmt{Base: b}
		x.X, err = d.expr(v)

		return x, err
	default:
		return nil, d.errorf(n, "unknown statement")
	}
}

func (d *decoder) optExpr(n *yaml.Node) (Expr, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}

	return d.expr(n)
}

func (d *decoder) expr(n *yaml.Node) (x Expr, err error) {
	if n == nil {
		return nil, errors.New("%v: missing expression", d.name)
	}

	b := span(n)

	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!int" {
			v, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				return nil, d.errorf(n, "int literal: %v", err)
			}

			return &Int{Base: b, Value: v}, nil
		}

		if n.ShortTag() == "!!bool" {
			v := int64(0)
			if n.Value == "true" {
				v = 1
			}

			return &Int{Base: b, Value: v}, nil
		}

		if n.ShortTag() != "!!str" || n.Value == "" {
			return nil, d.errorf(n, "unexpected scalar %q", n.Value)
		}

		return &Ident{Base: b, Name: n.Value}, nil
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expression expected")
	}

	kind, v := d.kind(n, []string{"str", "op", "unary", "call", "assign", "index", "field", "cast", "syscall", "foreign"})

	switch kind {
	case "str":
		return &Str{Base: b, Value: v.Value}, nil
	case "op":
		x := &Binary{Base: b, Op: v.Value}

		x.Left, err = d.expr(get(n, "l"))
		if err != nil {
			return nil, err
		}

		x.Right, err = d.expr(get(n, "r"))

		return x, err
	case "unary":
		x := &Unary{Base: b, Op: v.Value}
		x.X, err = d.expr(get(n, "x"))

		return x, err
	case "call":
		return d.call(n, v)
	case "assign":
		x := &Assign{Base: b}

		x.Target, err = d.expr(v)
		if err != nil {
			return nil, err
		}

		x.Value, err = d.expr(get(n, "value"))

		return x, err
	case "index":
		x := &Index{Base: b}

		x.X, err = d.expr(v)
		if err != nil {
			return nil, err
		}

		x.Index, err = d.expr(get(n, "at"))

		return x, err
	case "field":
		x := &Field{Base: b, Name: v.Value, Indirect: d.flag(n, "ptr")}
		x.X, err = d.expr(get(n, "of"))

		return x, err
	case "cast":
		x := &Cast{Base: b, Type: d.typ(v)}
		x.X, err = d.expr(get(n, "x"))

		return x, err
	case "syscall":
		x := &Syscall{Base: b}

		x.Num, err = d.expr(v)
		if err != nil {
			return nil, err
		}

		x.Args, err = d.exprs(get(n, "args"))

		return x, err
	case "foreign":
		x := &Foreign{Base: b, Name: v.Value, Ret: d.typ(get(n, "ret"))}
		x.Args, err = d.exprs(get(n, "args"))

		return x, err
	default:
		return nil, d.errorf(n, "unknown expression")
	}
}

func (d *decoder) call(n, v *yaml.Node) (x *Call, err error) {
	x = &Call{Base: span(n), Name: v.Value}
	x.Args, err = d.exprs(get(n, "args"))

	return x, err
}

func (d *decoder) exprs(n *yaml.Node) (l []Expr, err error) {
	if n == nil {
		return nil, nil
	}

	for _, a := range n.Content {
		x, err := d.expr(a)
		if err != nil {
			return nil, err
		}

		l = append(l, x)
	}

	return l, nil
}

func (d *decoder) params(n *yaml.Node) (l []Param, err error) {
	if n == nil {
		return nil, nil
	}

	for _, p := range n.Content {
		if p.Kind != yaml.MappingNode {
			return nil, d.errorf(p, "param must be a mapping")
		}

		l = append(l, Param{
			Name: str(get(p, "name")),
			Type: d.typ(get(p, "type")),
		})
	}

	return l, nil
}

func (d *decoder) typ(n *yaml.Node) (t TypeRef) {
	if n == nil {
		return t
	}

	t.Name = strings.TrimRight(n.Value, "*")
	t.Ptr = len(n.Value) - len(t.Name)

	return t
}

func (d *decoder) flag(n *yaml.Node, key string) bool {
	v := get(n, key)

	return v != nil && v.Value == "true"
}

func (d *decoder) kind(n *yaml.Node, kinds []string) (string, *yaml.Node) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		for _, k := range kinds {
			if n.Content[i].Value == k {
				return k, n.Content[i+1]
			}
		}
	}

	return "", nil
}

func (d *decoder) errorf(n *yaml.Node, f string, args ...any) error {
	return errors.New("%v:%d:%d: "+f, append([]any{d.name, n.Line, n.Column}, args...)...)
}

func get(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}

	return nil
}

func str(n *yaml.Node) string {
	if n == nil {
		return ""
	}

	return n.Value
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func span(n *yaml.Node) Base {
	return Base{Line: n.Line, Col: n.Column}
}
