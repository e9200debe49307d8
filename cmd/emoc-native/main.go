// emoc-native - serves EmoCode native plugins over stdin/stdout
//
// The daemon loads c-shared plugins on demand through pkg/native and
// answers one JSON request per line:
//
//	{"name": "add", "args": [1, 2]}
//	{"name": "Car.honk"}
//
// with one JSON reply per line:
//
//	{"result": 3}
//	{"error": "plugin not found: /path/Car.so"}
//
// Build: go build ./cmd/emoc-native
// Usage: emoc-native [-native-dir DIR] [-log-level debug]
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/emoc/pkg/config"
	"github.com/chazu/emoc/pkg/logger"
	"github.com/chazu/emoc/pkg/native"
	"github.com/chazu/emoc/pkg/runtime"
)

// Request is one call to serve.
type Request struct {
	Name string          `json:"name"`
	Args []runtime.Value `json:"args"`
}

// Response is the reply to one request.
type Response struct {
	Result *runtime.Value `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Daemon dispatches requests to plugins.
type Daemon struct {
	loader *native.Loader
	out    *json.Encoder
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "emoc-native: %v\n", err)
		os.Exit(2)
	}
	fs := flag.NewFlagSet("emoc-native", flag.ExitOnError)
	fs.StringVar(&cfg.NativeDir, "native-dir", cfg.NativeDir, "directory containing .so/.dylib plugins (env "+config.EnvNativeDir+")")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of stderr")
	_ = fs.Parse(os.Args[1:])
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "emoc-native: %v\n", err)
		os.Exit(2)
	}

	closer, err := logger.Init(cfg.Logger(os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "emoc-native: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	dir := cfg.NativeDir
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".emoc", "native")
	}
	logger.Info("Serving plugins", "dir", dir)

	d := NewDaemon(dir, os.Stdout)
	if err := d.Serve(os.Stdin); err != nil {
		logger.Error("Reading requests", "error", err)
		os.Exit(1)
	}
}

// NewDaemon creates a daemon serving plugins from dir and replying to w.
func NewDaemon(dir string, w io.Writer) *Daemon {
	return &Daemon{loader: native.NewLoader(dir), out: json.NewEncoder(w)}
}

// Serve answers requests read from r until EOF.
func (d *Daemon) Serve(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, len(buf))

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			d.respond(Response{Error: "invalid JSON: " + err.Error()})
			continue
		}
		d.respond(d.Handle(req))
	}
	return scanner.Err()
}

// Handle serves a single request.
func (d *Daemon) Handle(req Request) Response {
	if req.Name == "" {
		return Response{Error: "request has no name"}
	}
	logger.Debug("Request", "name", req.Name, "args", len(req.Args))

	h, err := d.loader.Resolve(req.Name)
	if err != nil {
		if !errors.Is(err, native.ErrPluginNotFound) {
			logger.Warn("Plugin failed to load", "name", req.Name, "error", err)
		}
		return Response{Error: err.Error()}
	}
	v, err := h(req.Args)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: &v}
}

func (d *Daemon) respond(resp Response) {
	if err := d.out.Encode(resp); err != nil {
		logger.Error("Writing response", "error", err)
	}
}
