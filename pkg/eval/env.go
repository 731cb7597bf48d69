package eval

import (
	"sort"

	"github.com/chazu/mk/pkg/object"
)

// EnvID indexes the interpreter's environment arena.
type EnvID int

// NoEnv is the parent of the global environment.
const NoEnv EnvID = -1

// GlobalEnv is the environment program-level bindings live in.
const GlobalEnv EnvID = 0

type environment struct {
	vars   map[string]object.Object
	parent EnvID
}

// newEnv appends a fresh environment enclosed by parent and returns its id.
// Closures hold ids into the arena, so an environment is only released
// when no closure can reach it.
func (in *Interpreter) newEnv(parent EnvID) EnvID {
	in.envs = append(in.envs, environment{
		vars:   make(map[string]object.Object),
		parent: parent,
	})
	return EnvID(len(in.envs) - 1)
}

// release pops every environment at or above mark.
func (in *Interpreter) release(mark EnvID) {
	clear(in.envs[mark:])
	in.envs = in.envs[:mark]
}

func (in *Interpreter) define(id EnvID, name string, v object.Object) {
	in.envs[id].vars[name] = v
}

func (in *Interpreter) lookup(id EnvID, name string) (object.Object, bool) {
	for id != NoEnv {
		env := &in.envs[id]
		if v, ok := env.vars[name]; ok {
			return v, true
		}
		id = env.parent
	}
	if b, ok := in.builtins[name]; ok {
		return b, true
	}
	return nil, false
}

// EnvCount returns the number of live environments.
func (in *Interpreter) EnvCount() int { return len(in.envs) }

// Binding is a name bound in the global environment.
type Binding struct {
	Name  string
	Value object.Object
}

// Globals returns the global bindings sorted by name.
func (in *Interpreter) Globals() []Binding {
	vars := in.envs[GlobalEnv].vars
	out := make([]Binding, 0, len(vars))
	for name, v := range vars {
		out = append(out, Binding{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
