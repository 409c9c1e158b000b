package naming

// goReserved are the Go keywords and predeclared identifiers.
var goReserved = []string{
	// keywords
	"break", "case", "chan", "const", "continue", "default", "defer",
	"else", "fallthrough", "for", "func", "go", "goto", "if", "import",
	"interface", "map", "package", "range", "return", "select", "struct",
	"switch", "type", "var",
	// predeclared
	"any", "bool", "byte", "comparable", "complex64", "complex128", "error",
	"float32", "float64", "int", "int8", "int16", "int32", "int64", "rune",
	"string", "uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
	"true", "false", "iota", "nil",
	"append", "cap", "clear", "close", "complex", "copy", "delete", "imag",
	"len", "make", "max", "min", "new", "panic", "print", "println", "real",
	"recover",
}

// packageReserved are the package names generated files import and the
// locals generated methods declare, which would shadow a type of the same
// name.
var packageReserved = []string{
	"descriptor", "fmt", "sync", "value",
	"a", "e", "err", "s", "t", "u", "v", "x",
}

// methodReserved are the methods generated on structs and unions; a field
// of the same name would not compile.
var methodReserved = []string{"Descriptor", "FromValue", "ToValue"}

// unionReserved are fields every generated union carries.
var unionReserved = []string{"Disc"}
