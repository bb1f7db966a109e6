package lua

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestDoStringRuns(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `answer = 21 * 2`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	got := s.GetGlobal("answer")
	if n, ok := got.(glua.LNumber); !ok || float64(n) != 42 {
		t.Fatalf("answer = %v, want 42", got)
	}
}

func TestDoStringSyntaxError(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `this is not lua`); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestCallTimeoutInterruptsRunawayCode(t *testing.T) {
	s := NewState(WithCallTimeout(100 * time.Millisecond))
	defer s.Close()

	start := time.Now()
	err := s.DoString(context.Background(), `while true do end`)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error for infinite loop")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("interrupt took %v, want well under 2s", elapsed)
	}
}

func TestCallFieldInvokesTableMethod(t *testing.T) {
	s := NewState()
	defer s.Close()

	code := `
		plugin = {}
		function plugin.greet(name)
			return "hello " .. name
		end
	`
	if err := s.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	tbl, ok := s.GetGlobal("plugin").(*glua.LTable)
	if !ok {
		t.Fatal("plugin global is not a table")
	}

	results, err := s.CallField(context.Background(), tbl, "greet", glua.LString("world"))
	if err != nil {
		t.Fatalf("CallField: %v", err)
	}
	if len(results) != 1 || results[0].String() != "hello world" {
		t.Fatalf("results = %v, want [hello world]", results)
	}
}

func TestCallFieldMissingFunction(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `plugin = { version = 1 }`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	tbl := s.GetGlobal("plugin").(*glua.LTable)

	if _, err := s.CallField(context.Background(), tbl, "activate"); !errors.Is(err, ErrNotFunction) {
		t.Fatalf("err = %v, want ErrNotFunction", err)
	}
	if _, err := s.CallField(context.Background(), tbl, "version"); !errors.Is(err, ErrNotFunction) {
		t.Fatalf("err = %v, want ErrNotFunction for non-function field", err)
	}
}

func TestCallFunctionReturnsMultipleValues(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `function pair() return 1, "two" end`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	fn, ok := s.GetGlobal("pair").(*glua.LFunction)
	if !ok {
		t.Fatal("pair is not a function")
	}

	results, err := s.CallFunction(context.Background(), fn)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestRuntimeErrorSurfacesAsError(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `function boom() error("broken") end`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	fn := s.GetGlobal("boom").(*glua.LFunction)

	_, err := s.CallFunction(context.Background(), fn)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("err = %v, want runtime error containing %q", err, "broken")
	}
}

func TestSandboxBlocksUnsafeGlobals(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os"} {
		if got := s.GetGlobal(name); got != glua.LNil {
			t.Errorf("global %q = %v, want nil", name, got)
		}
	}
}

func TestSafeRequireWhitelist(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(context.Background(), `local str = require("string"); up = str.upper("ok")`); err != nil {
		t.Fatalf("require string: %v", err)
	}
	if got := s.GetGlobal("up").String(); got != "OK" {
		t.Fatalf("up = %q, want OK", got)
	}

	for _, mod := range []string{"io", "os", "debug", "socket"} {
		err := s.DoString(context.Background(), `require("`+mod+`")`)
		if err == nil {
			t.Errorf("require %q succeeded, want error", mod)
		}
	}
}

func TestClosedStateRejectsCalls(t *testing.T) {
	s := NewState()
	s.Close()

	if err := s.DoString(context.Background(), `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Fatalf("err = %v, want ErrStateClosed", err)
	}
	if !s.IsClosed() {
		t.Fatal("IsClosed = false after Close")
	}

	// Double close is a no-op.
	s.Close()
}
