package runtime

import (
	"errors"
	"reflect"
	"testing"
)

func TestHandlerRegistry(t *testing.T) {
	hr := NewHandlerRegistry()

	called := false
	hr.Register("answer", func(args []Value) (Value, error) {
		called = true
		return Number(42), nil
	})

	h := hr.Lookup("answer")
	if h == nil {
		t.Fatal("Lookup returned nil for registered handler")
	}
	result, err := h(nil)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != Number(42) {
		t.Errorf("result = %v, want 42", result)
	}

	if h := hr.Lookup("question"); h != nil {
		t.Error("Lookup returned non-nil for unregistered handler")
	}
}

func TestHandlerRegistryNil(t *testing.T) {
	var hr *HandlerRegistry
	if h := hr.Lookup("abs"); h != nil {
		t.Error("nil registry should resolve nothing")
	}
}

type mapResolver struct {
	handlers map[string]HandlerFunc
	asked    []string
}

func (r *mapResolver) Resolve(name string) (HandlerFunc, error) {
	r.asked = append(r.asked, name)
	if h, ok := r.handlers[name]; ok {
		return h, nil
	}
	return nil, errors.New("not found")
}

func TestHandlerRegistryResolver(t *testing.T) {
	hr := NewHandlerRegistry()
	r := &mapResolver{handlers: map[string]HandlerFunc{
		"seven": func([]Value) (Value, error) { return Number(7), nil },
	}}
	hr.AddResolver(r)

	if h := hr.Lookup("seven"); h == nil {
		t.Fatal("resolver handler not found")
	}
	if h := hr.Lookup("seven"); h == nil {
		t.Fatal("cached handler not found")
	}
	if h := hr.Lookup("eight"); h != nil {
		t.Error("Lookup(eight) should be nil")
	}
	if want := []string{"seven", "eight"}; !reflect.DeepEqual(r.asked, want) {
		t.Errorf("resolver asked %q, want %q", r.asked, want)
	}
}

func TestListHandlers(t *testing.T) {
	hr := NewHandlerRegistry()
	hr.Register("b", nil)
	hr.Register("Counter.increment", nil)
	hr.Register("a", nil)

	want := []string{"Counter.increment", "a", "b"}
	if got := hr.ListHandlers(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListHandlers() = %q, want %q", got, want)
	}
}

func TestBuiltins(t *testing.T) {
	hr := NewHandlerRegistry()
	RegisterBuiltins(hr)

	tests := []struct {
		name    string
		args    []Value
		want    Value
		wantErr bool
	}{
		{"abs", []Value{Number(-5)}, Number(5), false},
		{"abs", nil, None, true},
		{"max", []Value{Number(1), Number(8), Number(3)}, Number(8), false},
		{"min", []Value{Number(4), Number(-2)}, Number(-2), false},
		{"min", []Value{}, None, true},
		{"max", []Value{Number(1), String("x")}, None, true},
		{"len", []Value{String("🎭🏛")}, Number(2), false},
		{"len", []Value{Number(1234)}, Number(4), false},
	}
	for _, tt := range tests {
		got, err := hr.Lookup(tt.name)(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s(%v) error = %v, wantErr %v", tt.name, tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.args, got, tt.want)
		}
	}
}
