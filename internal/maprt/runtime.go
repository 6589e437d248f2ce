// Package maprt implements executor.Runtime over in-memory JSON-like values:
// objects are map[string]any, lists are []any, and abstract values name their
// concrete type in a "__typename" entry.
package maprt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	executor "github.com/hanpama/docexec/internal/executor"
	schema "github.com/hanpama/docexec/internal/schema"
)

// TypenameKey is the map entry that names the concrete type of a value.
const TypenameKey = "__typename"

// Resolver computes one field. It overrides projection for that field.
type Resolver func(ctx context.Context, source any, args map[string]any) (any, error)

type Runtime struct {
	schema    *schema.Schema
	resolvers map[string]Resolver
	latency   time.Duration
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithResolver registers r for objectType.field.
func WithResolver(objectType, field string, r Resolver) Option {
	return func(rt *Runtime) { rt.resolvers[objectType+"."+field] = r }
}

// WithLatency delays every asynchronous resolution by d, or until the
// context is done.
func WithLatency(d time.Duration) Option {
	return func(rt *Runtime) { rt.latency = d }
}

func New(s *schema.Schema, opts ...Option) *Runtime {
	rt := &Runtime{schema: s, resolvers: make(map[string]Resolver)}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// ResolveSync projects field from a map source. Missing entries and nil
// sources resolve to null.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	if res := r.resolvers[objectType+"."+field]; res != nil {
		return res(ctx, source, args)
	}
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	}
	return nil, fmt.Errorf("cannot read field %s.%s from %T", objectType, field, source)
}

// ResolveAsync resolves like ResolveSync after the configured latency.
func (r *Runtime) ResolveAsync(ctx context.Context, task executor.AsyncResolveTask) (any, error) {
	if r.latency > 0 {
		t := time.NewTimer(r.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.ResolveSync(ctx, task.ObjectType, task.Field, task.Source, task.Args)
}

// ResolveType reads the __typename entry of value. An abstract type with a
// single possible type needs no tag.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if m, ok := value.(map[string]any); ok {
		if name, ok := m[TypenameKey].(string); ok {
			return name, nil
		}
	}
	if t := r.schema.Types[abstractType]; t != nil && len(t.PossibleTypes) == 1 {
		return t.PossibleTypes[0], nil
	}
	return "", fmt.Errorf("cannot determine the concrete type of a %s value without %s", abstractType, TypenameKey)
}

// SerializeLeafValue coerces a value to the result form of a scalar or enum.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String":
		return serializeString(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "ID":
		return serializeID(value)
	}

	t := r.schema.Types[typeName]
	if t != nil && t.Kind == schema.TypeKindEnum {
		name, ok := value.(string)
		if !ok || t.EnumValue(name) == nil {
			return nil, fmt.Errorf("Enum %q cannot represent value: %v", typeName, value)
		}
		return name, nil
	}
	switch v := value.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	}
	return value, nil
}

func serializeInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return v, nil
		}
	case int32:
		return int(v), nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && i >= math.MinInt32 && i <= math.MaxInt32 {
			return int(i), nil
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", value)
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int32, int64, json.Number:
		return fmt.Sprint(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", value)
}

func serializeID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v.String(), nil
		}
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("ID cannot represent value: %v", value)
}

// LoadFixture reads a JSON document to use as a root value. Numbers are kept
// as json.Number so integers survive unchanged.
func LoadFixture(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return root, nil
}
