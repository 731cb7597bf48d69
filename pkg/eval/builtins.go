package eval

import (
	"fmt"

	"github.com/chazu/mk/pkg/object"
)

// BuiltinInfo documents a built-in function.
type BuiltinInfo struct {
	Name      string
	Signature string
	Doc       string
}

var builtinInfo = []BuiltinInfo{
	{"first", "first(arr)", "First element of an array, or null when it is empty."},
	{"last", "last(arr)", "Last element of an array, or null when it is empty."},
	{"len", "len(x)", "Length of a string in bytes, or number of elements of an array."},
	{"print", "print(x)", "Writes a string, integer or boolean without a newline and returns it."},
	{"println", "println(x)", "Writes a string, integer or boolean followed by a newline and returns it."},
	{"push", "push(arr, x)", "New array with x appended. The argument array is unchanged."},
	{"rest", "rest(arr)", "New array without the first element, or null when it is empty."},
}

// Builtins lists the built-in functions sorted by name.
func Builtins() []BuiltinInfo {
	return append([]BuiltinInfo(nil), builtinInfo...)
}

// LookupBuiltin returns the documentation of the named built-in.
func LookupBuiltin(name string) (BuiltinInfo, bool) {
	for _, b := range builtinInfo {
		if b.Name == name {
			return b, true
		}
	}
	return BuiltinInfo{}, false
}

func (in *Interpreter) newBuiltins() map[string]*object.Builtin {
	fns := map[string]object.BuiltinFunc{
		"len":     builtinLen,
		"first":   builtinFirst,
		"last":    builtinLast,
		"rest":    builtinRest,
		"push":    builtinPush,
		"print":   in.printer("print", false),
		"println": in.printer("println", true),
	}
	out := make(map[string]*object.Builtin, len(fns))
	for name, fn := range fns {
		out[name] = &object.Builtin{Name: name, Fn: fn}
	}
	return out
}

func checkArgs(name string, args []object.Object, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, name, want, len(args))
	}
	return nil
}

func badArg(name string, arg object.Object) error {
	return fmt.Errorf("%w: %s does not accept %s", ErrTypeMismatch, name, arg.Type())
}

func arrayArg(name string, args []object.Object) (*object.Array, error) {
	if err := checkArgs(name, args, 1); err != nil {
		return nil, err
	}
	arr, ok := args[0].(*object.Array)
	if !ok {
		return nil, badArg(name, args[0])
	}
	return arr, nil
}

func builtinLen(args ...object.Object) (object.Object, error) {
	if err := checkArgs("len", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *object.String:
		return &object.Integer{Value: int64(len(v.Value))}, nil
	case *object.Array:
		return &object.Integer{Value: int64(len(v.Elements))}, nil
	}
	return nil, badArg("len", args[0])
}

func builtinFirst(args ...object.Object) (object.Object, error) {
	arr, err := arrayArg("first", args)
	if err != nil {
		return nil, err
	}
	if len(arr.Elements) == 0 {
		return object.NullValue, nil
	}
	return arr.Elements[0], nil
}

func builtinLast(args ...object.Object) (object.Object, error) {
	arr, err := arrayArg("last", args)
	if err != nil {
		return nil, err
	}
	if len(arr.Elements) == 0 {
		return object.NullValue, nil
	}
	return arr.Elements[len(arr.Elements)-1], nil
}

func builtinRest(args ...object.Object) (object.Object, error) {
	arr, err := arrayArg("rest", args)
	if err != nil {
		return nil, err
	}
	if len(arr.Elements) == 0 {
		return object.NullValue, nil
	}
	rest := make([]object.Object, len(arr.Elements)-1)
	copy(rest, arr.Elements[1:])
	return &object.Array{Elements: rest}, nil
}

func builtinPush(args ...object.Object) (object.Object, error) {
	if err := checkArgs("push", args, 2); err != nil {
		return nil, err
	}
	arr, ok := args[0].(*object.Array)
	if !ok {
		return nil, badArg("push", args[0])
	}
	elems := make([]object.Object, len(arr.Elements), len(arr.Elements)+1)
	copy(elems, arr.Elements)
	return &object.Array{Elements: append(elems, args[1])}, nil
}

func (in *Interpreter) printer(name string, newline bool) object.BuiltinFunc {
	return func(args ...object.Object) (object.Object, error) {
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		var text string
		switch v := args[0].(type) {
		case *object.String:
			text = v.Value
		case *object.Integer, *object.Boolean:
			text = v.Inspect()
		default:
			return nil, badArg(name, args[0])
		}
		if newline {
			text += "\n"
		}
		if _, err := fmt.Fprint(in.out, text); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return args[0], nil
	}
}
