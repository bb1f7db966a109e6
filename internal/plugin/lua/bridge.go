package lua

import (
	"fmt"
	"reflect"

	glua "github.com/yuin/gopher-lua"
)

// Bridge converts values across the Go/Lua boundary.
type Bridge struct {
	L *glua.LState
}

// NewBridge creates a Bridge for the given interpreter.
func NewBridge(L *glua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value. Tables become []interface{}
// when they are contiguous 1-based arrays and map[string]interface{}
// otherwise. Circular tables are cut with nil. Functions convert to nil;
// callbacks must be kept as Lua values.
func (b *Bridge) ToGoValue(lv glua.LValue) interface{} {
	return b.toGo(lv, make(map[*glua.LTable]bool))
}

func (b *Bridge) toGo(lv glua.LValue, visited map[*glua.LTable]bool) interface{} {
	switch v := lv.(type) {
	case glua.LBool:
		return bool(v)
	case glua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case glua.LString:
		return string(v)
	case *glua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	case *glua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *glua.LTable, visited map[*glua.LTable]bool) interface{} {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ glua.LValue) {
		count++
		kn, ok := k.(glua.LNumber)
		if !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 {
			isArray = false
			return
		}
		if int(kn) > maxN {
			maxN = int(kn)
		}
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]interface{}, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]interface{}, count)
	t.ForEach(func(k, v glua.LValue) {
		var key string
		switch kv := k.(type) {
		case glua.LString:
			key = string(kv)
		case glua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value. Structs convert to tables
// keyed by json tags when present.
func (b *Bridge) ToLuaValue(v interface{}) glua.LValue {
	if v == nil {
		return glua.LNil
	}

	switch val := v.(type) {
	case bool:
		return glua.LBool(val)
	case int:
		return glua.LNumber(val)
	case int32:
		return glua.LNumber(val)
	case int64:
		return glua.LNumber(val)
	case uint:
		return glua.LNumber(val)
	case uint64:
		return glua.LNumber(val)
	case float32:
		return glua.LNumber(val)
	case float64:
		return glua.LNumber(val)
	case string:
		return glua.LString(val)
	case []byte:
		return glua.LString(val)
	case []interface{}:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, glua.LString(item))
		}
		return t
	case map[string]interface{}:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, b.ToLuaValue(item))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, glua.LString(item))
		}
		return t
	case glua.LValue:
		return val
	default:
		return b.reflectToLua(v)
	}
}

func (b *Bridge) reflectToLua(v interface{}) glua.LValue {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return glua.LNil
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return glua.LNil
		}
		return b.reflectToLua(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t

	case reflect.Map:
		t := b.L.NewTable()
		for _, key := range rv.MapKeys() {
			t.RawSet(b.ToLuaValue(key.Interface()), b.ToLuaValue(rv.MapIndex(key).Interface()))
		}
		return t

	case reflect.Struct:
		return b.structToTable(rv)

	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

func (b *Bridge) structToTable(rv reflect.Value) *glua.LTable {
	t := b.L.NewTable()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
			for j := 0; j < len(tag); j++ {
				if tag[j] == ',' {
					tag = tag[:j]
					break
				}
			}
			if tag != "" {
				name = tag
			}
		}

		t.RawSetString(name, b.ToLuaValue(rv.Field(i).Interface()))
	}
	return t
}

// WrapGoFunc adapts a Go function to a Lua function. Arguments are
// converted to Go values; a non-nil error raises a Lua error.
func (b *Bridge) WrapGoFunc(fn func(args []interface{}) (interface{}, error)) glua.LGFunction {
	return func(L *glua.LState) int {
		nArgs := L.GetTop()
		args := make([]interface{}, nArgs)
		for i := 1; i <= nArgs; i++ {
			args[i-1] = b.ToGoValue(L.Get(i))
		}

		result, err := fn(args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}
