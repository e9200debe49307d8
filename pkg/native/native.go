// Package native loads c-shared plugins (.so/.dylib) that implement
// functions an EmoCode program calls but does not define.
//
// A plugin for function "name" lives at <dir>/name<ext>; methods called as
// Class.method are served by the Class plugin. Every plugin exports
//
//	Invoke(name *C.char, argsJSON *C.char) *C.char
//
// where argsJSON is a JSON array of argument values and the result is a
// JSON object {"result": <value>} or {"error": "<message>"}.
package native

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/jamesits/goinvoke"

	"github.com/chazu/emoc/pkg/logger"
	"github.com/chazu/emoc/pkg/runtime"
)

// ErrPluginNotFound is returned when no shared library exists for a name.
var ErrPluginNotFound = errors.New("plugin not found")

// PluginFuncs holds the exported functions from a c-shared plugin.
type PluginFuncs struct {
	Invoke *goinvoke.Proc `func:"Invoke"`
}

// Plugin is a loaded shared library.
type Plugin struct {
	funcs *PluginFuncs
	name  string
	path  string
}

// Reply is the JSON object a plugin returns.
type Reply struct {
	Result runtime.Value `json:"result"`
	Error  string        `json:"error,omitempty"`
}

// Loader resolves handlers from a plugin directory, loading each library
// at most once.
type Loader struct {
	dir     string
	plugins map[string]*Plugin
	mu      sync.RWMutex
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:     dir,
		plugins: make(map[string]*Plugin),
	}
}

// Ext returns the shared library extension for the host OS.
func Ext() string {
	if goruntime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}

// Path returns where the plugin serving name would live.
func (l *Loader) Path(name string) string {
	lib, _, _ := strings.Cut(name, ".")
	return filepath.Join(l.dir, lib+Ext())
}

// Resolve implements runtime.Resolver.
func (l *Loader) Resolve(name string) (runtime.HandlerFunc, error) {
	p, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return func(args []runtime.Value) (runtime.Value, error) {
		return p.Call(name, args)
	}, nil
}

// Load loads the plugin serving name, caching it for subsequent calls.
func (l *Loader) Load(name string) (*Plugin, error) {
	path := l.Path(name)

	l.mu.RLock()
	p, ok := l.plugins[path]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.plugins[path]; ok {
		return p, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, path)
	}

	funcs := &PluginFuncs{}
	if err := goinvoke.Unmarshal(path, funcs); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if funcs.Invoke == nil {
		return nil, fmt.Errorf("plugin %s missing Invoke function", path)
	}

	p = &Plugin{funcs: funcs, name: name, path: path}
	l.plugins[path] = p
	logger.Info("Loaded plugin", "path", path)
	return p, nil
}

// Available lists the names of the plugins in the directory, without
// loading them. A missing directory has no plugins.
func (l *Loader) Available() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing plugins: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext()))
	}
	return names, nil
}

// Loaded returns the paths of every plugin loaded so far.
func (l *Loader) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := make([]string, 0, len(l.plugins))
	for path := range l.plugins {
		paths = append(paths, path)
	}
	return paths
}

// Call invokes the plugin's Invoke export for name.
func (p *Plugin) Call(name string, args []runtime.Value) (runtime.Value, error) {
	if args == nil {
		args = []runtime.Value{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return runtime.None, fmt.Errorf("encoding arguments: %w", err)
	}

	namePtr, nameBuf := cstring(name)
	argsPtr, argsBuf := cstring(string(argsJSON))
	ret, _, _ := p.funcs.Invoke.Call(uintptr(namePtr), uintptr(argsPtr))
	goruntime.KeepAlive(nameBuf)
	goruntime.KeepAlive(argsBuf)

	return DecodeReply(gostring(unsafe.Pointer(ret)))
}

// DecodeReply turns a plugin's JSON reply into a value or error.
func DecodeReply(data string) (runtime.Value, error) {
	if data == "" {
		return runtime.None, errors.New("plugin returned nothing")
	}
	var r Reply
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return runtime.None, fmt.Errorf("decoding plugin reply: %w", err)
	}
	if r.Error != "" {
		return runtime.None, errors.New(r.Error)
	}
	return r.Result, nil
}

// cstring converts a Go string to a null-terminated byte slice. The slice
// is returned so the caller can keep it alive across the foreign call.
func cstring(s string) (unsafe.Pointer, []byte) {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0]), b
}

// gostring converts a C string pointer to a Go string.
func gostring(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length > 1024*1024 {
			break
		}
	}
	return string(unsafe.Slice((*byte)(p), length))
}
