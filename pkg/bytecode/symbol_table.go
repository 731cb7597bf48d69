package bytecode

// SymbolScope names the storage class of a symbol.
type SymbolScope string

// GlobalScope is the only scope the bytecode path knows.
const GlobalScope SymbolScope = "GLOBAL"

// MaxGlobals is the number of slots addressable by a 2-byte operand.
const MaxGlobals = 1 << 16

// Symbol is a resolved name.
type Symbol struct {
	Name  string
	Scope SymbolScope
	Index int
}

// SymbolTable maps names to global slots. Every Define allocates a new slot,
// so a redefined name resolves to its most recent slot and the older one is
// left unused.
type SymbolTable struct {
	store   map[string]Symbol
	symbols []Symbol
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]Symbol)}
}

// Define assigns the next slot to name.
func (s *SymbolTable) Define(name string) Symbol {
	sym := Symbol{Name: name, Scope: GlobalScope, Index: len(s.symbols)}
	s.store[name] = sym
	s.symbols = append(s.symbols, sym)
	return sym
}

// Resolve returns the most recent definition of name.
func (s *SymbolTable) Resolve(name string) (Symbol, bool) {
	sym, ok := s.store[name]
	return sym, ok
}

// Len returns the number of slots allocated.
func (s *SymbolTable) Len() int {
	return len(s.symbols)
}

// Full reports whether every addressable slot has been allocated.
func (s *SymbolTable) Full() bool {
	return len(s.symbols) >= MaxGlobals
}

// Symbols returns all definitions in slot order, including shadowed ones.
func (s *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Clone returns an independent copy of the table.
func (s *SymbolTable) Clone() *SymbolTable {
	c := &SymbolTable{
		store:   make(map[string]Symbol, len(s.store)),
		symbols: make([]Symbol, len(s.symbols)),
	}
	for name, sym := range s.store {
		c.store[name] = sym
	}
	copy(c.symbols, s.symbols)
	return c
}
