package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	glua "github.com/yuin/gopher-lua"
)

// DefaultCallTimeout is the wall-clock budget for a single call into
// plugin code.
const DefaultCallTimeout = 5 * time.Second

// State wraps a gopher-lua interpreter for one plugin.
//
// gopher-lua's LState is not goroutine-safe; all entry points serialize on
// an internal mutex. Calls carry a context whose deadline is installed on
// the interpreter, so plugin code that exceeds it fails at the next VM
// checkpoint instead of hanging the host.
type State struct {
	L *glua.LState

	mu          sync.Mutex
	callTimeout time.Duration
	closed      bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithCallTimeout sets the per-call wall-clock budget. Zero disables it.
func WithCallTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.callTimeout = d
	}
}

// NewState creates a sandboxed Lua state with only safe libraries opened.
func NewState(opts ...StateOption) *State {
	s := &State{
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	L := glua.NewState(glua.Options{
		SkipOpenLibs: true,
	})
	s.L = L

	openSafeLibraries(L)
	restrict(L)

	return s
}

// openSafeLibraries opens only the Lua standard libraries that cannot
// touch the host system. io, os, and debug stay closed; file and network
// access go through the host API exclusively. The package library is
// opened for require but immediately neutered by restrict.
func openSafeLibraries(L *glua.LState) {
	glua.OpenPackage(L)
	glua.OpenBase(L)
	glua.OpenTable(L)
	glua.OpenString(L)
	glua.OpenMath(L)
}

// DoFile executes a Lua file under the call timeout.
func (s *State) DoFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.withDeadline(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes Lua source under the call timeout.
func (s *State) DoString(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.withDeadline(ctx, func() error {
		return s.L.DoString(code)
	})
}

// CallField calls a function-valued field of a table, typically a lifecycle
// method on the plugin's export table. Returns all results.
func (s *State) CallField(ctx context.Context, tbl *glua.LTable, field string, args ...glua.LValue) ([]glua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fn := tbl.RawGetString(field)
	lf, ok := fn.(*glua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is %s", ErrNotFunction, field, fn.Type())
	}

	return s.call(ctx, lf, args)
}

// CallFunction calls a Lua function value, typically a stored hook callback.
func (s *State) CallFunction(ctx context.Context, fn *glua.LFunction, args ...glua.LValue) ([]glua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	return s.call(ctx, fn, args)
}

// CallWithValues calls a Lua function with Go arguments, converting them
// under the state lock. Results come back as Go values.
func (s *State) CallWithValues(ctx context.Context, fn *glua.LFunction, args ...interface{}) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	bridge := NewBridge(s.L)
	largs := make([]glua.LValue, len(args))
	for i, arg := range args {
		largs[i] = bridge.ToLuaValue(arg)
	}

	results, err := s.call(ctx, fn, largs)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, len(results))
	for i, res := range results {
		out[i] = bridge.ToGoValue(res)
	}
	return out, nil
}

// call pushes and invokes fn with panic recovery. Caller must hold mu.
func (s *State) call(ctx context.Context, fn *glua.LFunction, args []glua.LValue) ([]glua.LValue, error) {
	stackTop := s.L.GetTop()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	err := s.withDeadline(ctx, func() error {
		return s.L.PCall(len(args), glua.MultRet, nil)
	})
	if err != nil {
		return nil, err
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []glua.LValue{}, nil
	}
	results := make([]glua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// withDeadline installs the call deadline on the interpreter, runs fn with
// panic recovery, and removes the deadline again. Caller must hold mu.
func (s *State) withDeadline(ctx context.Context, fn func() error) (err error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	if _, ok := ctx.Deadline(); ok {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// GetGlobal returns a global value.
func (s *State) GetGlobal(name string) glua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return glua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global value.
func (s *State) SetGlobal(name string, value glua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// LuaState exposes the raw interpreter for API binding during load.
// The caller owns synchronization; use only before plugin code runs
// concurrently.
func (s *State) LuaState() *glua.LState {
	return s.L
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the interpreter. Further calls return ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
