// handlers.go provides native Go implementations for functions a program
// calls but does not define.

package runtime

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"
)

// HandlerFunc is the signature for native function handlers. It receives
// the call's argument values and returns the value reported as the call's
// result.
type HandlerFunc func(args []Value) (Value, error)

// Resolver supplies handlers on demand, e.g. from plugins on disk.
type Resolver interface {
	Resolve(name string) (HandlerFunc, error)
}

// HandlerRegistry maps function names (or "Class.method" keys) to native
// handlers.
type HandlerRegistry struct {
	handlers  map[string]HandlerFunc
	resolvers []Resolver
	mu        sync.RWMutex
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler under name. Method handlers use "Class.method".
func (hr *HandlerRegistry) Register(name string, handler HandlerFunc) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.handlers[name] = handler
}

// AddResolver appends a resolver consulted when no handler is registered.
func (hr *HandlerRegistry) AddResolver(r Resolver) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.resolvers = append(hr.resolvers, r)
}

// Lookup finds a handler for name, asking resolvers in order when none is
// registered. Resolved handlers are cached. Returns nil if nothing serves
// the name.
func (hr *HandlerRegistry) Lookup(name string) HandlerFunc {
	if hr == nil {
		return nil
	}
	hr.mu.RLock()
	h, ok := hr.handlers[name]
	resolvers := hr.resolvers
	hr.mu.RUnlock()
	if ok {
		return h
	}

	for _, r := range resolvers {
		h, err := r.Resolve(name)
		if err != nil || h == nil {
			continue
		}
		hr.Register(name, h)
		return h
	}
	return nil
}

// ListHandlers returns all registered names.
func (hr *HandlerRegistry) ListHandlers() []string {
	hr.mu.RLock()
	defer hr.mu.RUnlock()

	keys := make([]string, 0, len(hr.handlers))
	for k := range hr.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegisterBuiltins registers the small standard set: abs, max, min, len.
func RegisterBuiltins(hr *HandlerRegistry) {
	hr.Register("abs", func(args []Value) (Value, error) {
		n, err := numberArg("abs", args, 0)
		if err != nil {
			return None, err
		}
		if n < 0 {
			n = -n
		}
		return Number(n), nil
	})

	hr.Register("max", func(args []Value) (Value, error) {
		return foldNumbers("max", args, func(a, b int64) bool { return b > a })
	})

	hr.Register("min", func(args []Value) (Value, error) {
		return foldNumbers("min", args, func(a, b int64) bool { return b < a })
	})

	hr.Register("len", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return None, fmt.Errorf("len: requires 1 argument")
		}
		return Number(int64(utf8.RuneCountInString(args[0].String()))), nil
	})
}

func numberArg(name string, args []Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: requires %d argument(s)", name, i+1)
	}
	if args[i].Kind != KindNumber {
		return 0, fmt.Errorf("%s: argument %d is a %s, not a number", name, i+1, args[i].Kind)
	}
	return args[i].Num, nil
}

func foldNumbers(name string, args []Value, better func(a, b int64) bool) (Value, error) {
	if len(args) == 0 {
		return None, fmt.Errorf("%s: requires at least 1 argument", name)
	}
	best, err := numberArg(name, args, 0)
	if err != nil {
		return None, err
	}
	for i := 1; i < len(args); i++ {
		n, err := numberArg(name, args, i)
		if err != nil {
			return None, err
		}
		if better(best, n) {
			best = n
		}
	}
	return Number(best), nil
}
