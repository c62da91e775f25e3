package catalog

// Type is the static type of a column, expression, or value. Types are
// assigned to expressions by the analyzer and checked again by the vm when
// values are only known at execution time.
type Type int

const (
	// TypeUnknown is the zero value. After analysis it only remains on
	// placeholders whose type could not be inferred from their context.
	TypeUnknown Type = iota
	// TypeNull is the type of the NULL literal. It is compatible with every
	// other type.
	TypeNull
	TypeInteger
	TypeReal
	TypeText
	TypeBoolean
)

var typeNames = map[Type]string{
	TypeUnknown: "UNKNOWN",
	TypeNull:    "NULL",
	TypeInteger: "INTEGER",
	TypeReal:    "REAL",
	TypeText:    "TEXT",
	TypeBoolean: "BOOLEAN",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseType returns the type for a declared column type such as INTEGER or
// TEXT. The name is expected upper case as produced by the lexer.
func ParseType(name string) (Type, bool) {
	switch name {
	case "INTEGER":
		return TypeInteger, true
	case "REAL":
		return TypeReal, true
	case "TEXT":
		return TypeText, true
	case "BOOLEAN":
		return TypeBoolean, true
	}
	return TypeUnknown, false
}

func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeReal
}

// isLoose reports types that defer checking to execution.
func (t Type) isLoose() bool {
	return t == TypeNull || t == TypeUnknown
}

// Assignable reports if a value of type from may be stored in a column of type
// to. Integers widen into real columns.
func Assignable(to, from Type) bool {
	if from.isLoose() || to.isLoose() {
		return true
	}
	if to == from {
		return true
	}
	return to == TypeReal && from == TypeInteger
}

// Comparable reports if two types belong to the same family and can be
// compared with =, <>, <, <=, > or >=.
func Comparable(a, b Type) bool {
	if a.isLoose() || b.isLoose() {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a == b
}
