// Package object defines the runtime values shared by the bytecode VM and
// the tree-walking evaluator.
package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/chazu/mk/compiler"
)

// Type names a value variant.
type Type string

const (
	IntegerType  Type = "INTEGER"
	BooleanType  Type = "BOOLEAN"
	StringType   Type = "STRING"
	ArrayType    Type = "ARRAY"
	KVPairType   Type = "KV_PAIR"
	HashType     Type = "HASH"
	ReturnType   Type = "RETURN"
	NullType     Type = "NULL"
	BuiltinType  Type = "BUILTIN"
	FunctionType Type = "FUNCTION"
)

// Object is a runtime value.
type Object interface {
	Type() Type
	Inspect() string
}

// Shared singletons. Booleans and null are never allocated elsewhere.
var (
	True      = &Boolean{Value: true}
	False     = &Boolean{Value: false}
	NullValue = &Null{}
)

// NativeBool returns the shared Boolean for b.
func NativeBool(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

// Integer is a signed 64-bit integer.
type Integer struct {
	Value int64
}

func (i *Integer) Type() Type      { return IntegerType }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// Boolean is true or false.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() Type      { return BooleanType }
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// String is an immutable string value.
type String struct {
	Value string
}

func (s *String) Type() Type      { return StringType }
func (s *String) Inspect() string { return strconv.Quote(s.Value) }

// Array is an ordered sequence of values.
type Array struct {
	Elements []Object
}

func (a *Array) Type() Type { return ArrayType }
func (a *Array) Inspect() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// KVPair is one key/value entry of a Hash.
type KVPair struct {
	Key   Object
	Value Object
}

func (p *KVPair) Type() Type      { return KVPairType }
func (p *KVPair) Inspect() string { return p.Key.Inspect() + ": " + p.Value.Inspect() }

// HashKey identifies a hashable value inside a Hash.
type HashKey struct {
	Type  Type
	Value uint64
}

// Hashable is implemented by values usable as hash keys.
type Hashable interface {
	Object
	HashKey() HashKey
}

func (i *Integer) HashKey() HashKey {
	return HashKey{Type: IntegerType, Value: uint64(i.Value)}
}

func (b *Boolean) HashKey() HashKey {
	var v uint64
	if b.Value {
		v = 1
	}
	return HashKey{Type: BooleanType, Value: v}
}

// hashString is the 64-bit string hash behind String keys.
var hashString = xxh3.HashString

func (s *String) HashKey() HashKey {
	return HashKey{Type: StringType, Value: hashString(s.Value)}
}

// Hash maps hashable keys to values. Pairs sharing a HashKey are chained in
// one bucket and told apart by key equality. Order preserves first insertion.
type Hash struct {
	Pairs map[HashKey][]*KVPair
	order []*KVPair
}

// NewHash returns an empty hash.
func NewHash() *Hash {
	return &Hash{Pairs: make(map[HashKey][]*KVPair)}
}

func (h *Hash) find(hk HashKey, key Hashable) *KVPair {
	for _, pair := range h.Pairs[hk] {
		if same, _ := Equal(pair.Key, key); same {
			return pair
		}
	}
	return nil
}

// Set stores value under key, replacing any previous entry.
func (h *Hash) Set(key Hashable, value Object) {
	hk := key.HashKey()
	if pair := h.find(hk, key); pair != nil {
		pair.Value = value
		return
	}
	pair := &KVPair{Key: key, Value: value}
	h.Pairs[hk] = append(h.Pairs[hk], pair)
	h.order = append(h.order, pair)
}

// Get looks up key.
func (h *Hash) Get(key Hashable) (Object, bool) {
	pair := h.find(key.HashKey(), key)
	if pair == nil {
		return nil, false
	}
	return pair.Value, true
}

// Len returns the number of entries.
func (h *Hash) Len() int { return len(h.order) }

func (h *Hash) Type() Type { return HashType }
func (h *Hash) Inspect() string {
	parts := make([]string, 0, len(h.order))
	for _, pair := range h.order {
		parts = append(parts, pair.Inspect())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Return wraps the value of a return statement while it unwinds.
type Return struct {
	Value Object
}

func (r *Return) Type() Type      { return ReturnType }
func (r *Return) Inspect() string { return r.Value.Inspect() }

// Null is the absence of a value.
type Null struct{}

func (n *Null) Type() Type      { return NullType }
func (n *Null) Inspect() string { return "null" }

// BuiltinFunc is the Go implementation of a built-in.
type BuiltinFunc func(args ...Object) (Object, error)

// Builtin is a native function reference.
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

func (b *Builtin) Type() Type      { return BuiltinType }
func (b *Builtin) Inspect() string { return "builtin " + b.Name }

// Function is a closure of the tree-walking evaluator. Env indexes the
// evaluator's environment arena.
type Function struct {
	Params []*compiler.Identifier
	Body   *compiler.BlockStatement
	Env    int
}

func (f *Function) Type() Type { return FunctionType }
func (f *Function) Inspect() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Value
	}
	return fmt.Sprintf("fn(%s) %s", strings.Join(params, ", "), f.Body.String())
}

// Truthy reports whether o counts as true in a condition: Boolean(b) is b,
// Integer(n) is n != 0, everything else is false.
func Truthy(o Object) bool {
	switch v := o.(type) {
	case *Boolean:
		return v.Value
	case *Integer:
		return v.Value != 0
	default:
		return false
	}
}
