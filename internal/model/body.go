package model

// Shape is the structural variant reported by the documentation tool.
type Shape string

const (
	ShapeObject   Shape = "object"
	ShapeTable    Shape = "table"
	ShapeData     Shape = "data"
	ShapeFunction Shape = "function"
	ShapeClass    Shape = "class"
	ShapeAlias    Shape = "alias"
	ShapeEnum     Shape = "enum"
)

// Kind returns the kind a symbol of this shape has without a doctype override.
func (s Shape) Kind() Kind {
	switch s {
	case ShapeTable:
		return KindTable
	case ShapeData:
		return KindData
	case ShapeFunction:
		return KindFunction
	case ShapeClass:
		return KindClass
	case ShapeAlias:
		return KindAlias
	case ShapeEnum:
		return KindEnum
	}
	return KindModule
}

// Body is the shape-specific payload of an Object. A nil Body is a generic
// container.
type Body interface {
	shape() Shape
}

// Table marks a plain Lua table.
type Table struct{}

// Data is a variable or constant.
type Data struct {
	Type    string
	Literal string
}

// Function is a function or method.
type Function struct {
	Params    []*Param
	Returns   []*Param
	Generics  []*Param
	Overloads []string
	// ImplicitSelf is set for methods declared with a colon.
	ImplicitSelf bool
}

// Class is a class declaration.
type Class struct {
	Bases    []string
	Generics []*Param
	// Constructor is the function invoked by calling the class, if any.
	Constructor     *Object
	ConstructorName string
}

// Alias is a type alias.
type Alias struct {
	Type     string
	Generics []*Param
}

// Enum is an enumeration.
type Enum struct {
	Type     string
	Generics []*Param
}

func (*Table) shape() Shape { return ShapeTable }
func (*Data) shape() Shape { return ShapeData }
func (*Function) shape() Shape { return ShapeFunction }
func (*Class) shape() Shape { return ShapeClass }
func (*Alias) shape() Shape { return ShapeAlias }
func (*Enum) shape() Shape { return ShapeEnum }
