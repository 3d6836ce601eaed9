package ast

type (
	Node interface {
		Span() Base
	}

	Stmt interface {
		Node
		stmt()
	}

	Expr interface {
		Node
		expr()
	}

	// Base is the source span of a node.
	Base struct {
		Line int
		Col  int
		Pos  int
		End  int
	}

	File struct {
		Name  string
		Stmts []Stmt
	}

	TypeRef struct {
		Name string
		Ptr  int
	}

	Param struct {
		Name string
		Type TypeRef
	}

	FieldDecl struct {
		Base `tlog:",embed"`

		Name   string
		Type   TypeRef
		Public bool
	}

	Block struct {
		Base `tlog:",embed"`

		Stmts []Stmt
	}

	Namespace struct {
		Base `tlog:",embed"`

		Name  string
		Stmts []Stmt
	}

	FuncDecl struct {
		Base `tlog:",embed"`

		Name   string
		Public bool
		Params []Param
		Ret    TypeRef
		Body   *Block
	}

	Extern struct {
		Base `tlog:",embed"`

		Name   string
		Params []Param
		Ret    TypeRef

		// Var marks an external variable of type Ret.
		Var bool
	}

	StructDecl struct {
		Base `tlog:",embed"`

		Name   string
		Public bool
		Packed bool
		Fields []FieldDecl
	}

	VarDecl struct {
		Base `tlog:",embed"`

		Name string
		Type TypeRef
		Init Expr
	}

	Reassign struct {
		Base `tlog:",embed"`

		Name  string
		Op    string
		Value Expr
	}

	If struct {
		Base `tlog:",embed"`

		Cond  Expr
		Then  *Block
		Elifs []ElseIf
		Else  *Block
	}

	ElseIf struct {
		Cond Expr
		Then *Block
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body *Block
	}

	For struct {
		Base `tlog:",embed"`

		Var   string
		Start Expr
		End   Expr
		Step  Expr
		Body  *Block
	}

	CallStmt struct {
		Base `tlog:",embed"`

		Call *Call
	}

	ExprStmt struct {
		Base `tlog:",embed"`

		X Expr
	}

	Return struct {
		Base `tlog:",embed"`

		Value Expr
	}

	Binary struct {
		Base `tlog:",embed"`

		Op    string
		Left  Expr
		Right Expr
	}

	Unary struct {
		Base `tlog:",embed"`

		Op string
		X  Expr
	}

	Call struct {
		Base `tlog:",embed"`

		Name string
		Args []Expr
	}

	Assign struct {
		Base `tlog:",embed"`

		Target Expr
		Value  Expr
	}

	Index struct {
		Base `tlog:",embed"`

		X     Expr
		Index Expr
	}

	Field struct {
		Base `tlog:",embed"`

		X        Expr
		Name     string
		Indirect bool
	}

	Cast struct {
		Base `tlog:",embed"`

		X    Expr
		Type TypeRef
	}

	Syscall struct {
		Base `tlog:",embed"`

		Num  Expr
		Args []Expr
	}

	// Foreign is a raw call to an external symbol with an explicit return type.
	Foreign struct {
		Base `tlog:",embed"`

		Name string
		Ret  TypeRef
		Args []Expr
	}

	Int struct {
		Base `tlog:",embed"`

		Value int64
	}

	Str struct {
		Base `tlog:",embed"`

		Value string
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}
)

func (b Base) Span() Base { return b }

func (*Block) stmt()      {}
func (*Namespace) stmt()  {}
func (*FuncDecl) stmt()   {}
func (*Extern) stmt()     {}
func (*StructDecl) stmt() {}
func (*VarDecl) stmt()    {}
func (*Reassign) stmt()   {}
func (*If) stmt()         {}
func (*While) stmt()      {}
func (*For) stmt()        {}
func (*CallStmt) stmt()   {}
func (*ExprStmt) stmt()   {}
func (*Return) stmt()     {}

func (*Binary) expr()  {}
func (*Unary) expr()   {}
func (*Call) expr()    {}
func (*Assign) expr()  {}
func (*Index) expr()   {}
func (*Field) expr()   {}
func (*Cast) expr()    {}
func (*Syscall) expr() {}
func (*Foreign) expr() {}
func (*Int) expr()     {}
func (*Str) expr()     {}
func (*Ident) expr()   {}

func (t TypeRef) IsZero() bool { return t.Name == "" && t.Ptr == 0 }
