package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hanpama/docexec/internal/document"
	schema "github.com/hanpama/docexec/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema

	timeout        time.Duration
	maxConcurrency int
	maxDepth       int
	logger         *zap.Logger

	// concurrent holds the types whose selections may reach an async field.
	concurrent map[string]bool
}

type Option func(*Executor)

// WithTimeout bounds the wall-clock time of a whole operation. Branches still
// pending when it expires fail with ErrOperationTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxConcurrency bounds the number of in-flight ResolveAsync calls per
// operation. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) { e.maxConcurrency = n }
}

// WithMaxDepth rejects operations whose selections nest deeper than n fields.
func WithMaxDepth(n int) Option {
	return func(e *Executor) { e.maxDepth = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) *Executor {
	e := &Executor{runtime: runtime, schema: schema, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.concurrent = concurrentTypes(schema)
	return e
}

// ExecuteRequest prepares and executes one operation of doc.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	doc *document.Document,
	operationName string,
	variableValues map[string]any,
	rootValue any,
) *ExecutionResult {
	prepared, err := e.Prepare(doc, operationName)
	if err != nil {
		return errorResult(err)
	}
	return e.Execute(ctx, prepared, variableValues, rootValue)
}

// Execute binds variables and executes a prepared operation. Variable errors
// are reported before any field executes. If ctx is cancelled the result
// carries no data, only an OPERATION_CANCELLED error.
func (e *Executor) Execute(ctx context.Context, op *PreparedOperation, variableValues map[string]any, rootValue any) *ExecutionResult {
	bindings, err := bindVariables(e.schema, op.operation, variableValues)
	if err != nil {
		return errorResult(err)
	}

	callerCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.timeout, ErrOperationTimeout)
		defer cancel()
	}

	state := &executionState{
		runtime:    e.runtime,
		schema:     e.schema,
		document:   op.document,
		bindings:   bindings,
		concurrent: e.concurrent,
	}
	if e.maxConcurrency > 0 {
		state.sem = semaphore.NewWeighted(int64(e.maxConcurrency))
	}

	start := time.Now()
	fields, err := collectFields(op.document, e.schema, bindings, op.rootType, op.operation.SelectionSet)
	if err != nil {
		return errorResult(err)
	}
	serial := op.operation.Kind == document.Mutation
	data, err := state.executeFields(ctx, op.rootType, rootValue, fields, location{}, serial)

	if callerCtx.Err() != nil {
		e.logger.Debug("operation cancelled by caller",
			zap.String("operation", op.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(context.Cause(callerCtx)))
		return &ExecutionResult{Errors: []GraphQLError{{
			Message:    ErrOperationCancelled.Error(),
			Extensions: map[string]any{"code": CodeOperationCancelled},
		}}}
	}
	if errors.Is(context.Cause(ctx), ErrOperationTimeout) {
		e.logger.Debug("operation exceeded its time budget",
			zap.String("operation", op.Name()),
			zap.Duration("timeout", e.timeout))
	}
	if err != nil {
		state.recordRoot(err, fields)
		data = nil
	}
	return &ExecutionResult{Data: data, Errors: state.errors.sorted()}
}

// executionState holds the state of one operation execution. Everything but
// the error collector and the sub-field cache is read-only.
type executionState struct {
	runtime    Runtime
	schema     *schema.Schema
	document   *document.Document
	bindings   *Bindings
	concurrent map[string]bool
	sem        *semaphore.Weighted

	errors    errorCollector
	subfields sync.Map // subfieldKey -> []*collectedField
}

type subfieldKey struct {
	objectType string
	field      *collectedField
}

// executeFields executes the collected fields of one object. Async fields run
// in their own goroutines unless serial is set; every field writes only its
// own pre-allocated slot. A non-null field failure cancels the remaining
// siblings and is returned so the caller can null this object.
func (st *executionState) executeFields(ctx context.Context, objectType *schema.Type, source any, fields []*collectedField, loc location, serial bool) (*OrderedMap, error) {
	result := NewOrderedMap(len(fields))
	for _, cf := range fields {
		result.Set(cf.ResponseName, nil)
	}

	ctx, prune := context.WithCancelCause(ctx)
	defer prune(nil)

	var failure firstFailure
	var g errgroup.Group
	for i, cf := range fields {
		if isPruned(ctx) {
			break
		}
		fieldLoc := loc.field(cf.ResponseName, i)
		run := func() {
			v, err := st.executeField(ctx, objectType, source, cf, fieldLoc)
			if err != nil {
				failure.offer(i, err)
				prune(errBranchPruned)
				return
			}
			result.setAt(i, v)
		}
		if !serial && st.isAsync(objectType, cf) {
			g.Go(func() error {
				run()
				return nil
			})
			continue
		}
		run()
	}
	_ = g.Wait()

	if _, err := failure.get(); err != nil {
		return nil, err
	}
	return result, nil
}

func (st *executionState) isAsync(objectType *schema.Type, cf *collectedField) bool {
	def := objectType.Field(cf.Name)
	return def != nil && def.Async
}

// executeField resolves and completes one field. A nullable field catches
// errors from its subtree, records them at its own path and becomes null.
func (st *executionState) executeField(ctx context.Context, objectType *schema.Type, source any, cf *collectedField, loc location) (any, error) {
	if cf.Name == typenameField {
		return objectType.Name, nil
	}
	def := objectType.Field(cf.Name)
	if def == nil {
		st.errors.add(&FieldResolutionError{
			Path: loc.path,
			Err:  fmt.Errorf("cannot query field %q on type %q", cf.Name, objectType.Name),
		}, loc)
		return nil, nil
	}

	value, err := st.resolveField(ctx, objectType, def, cf, source, loc)
	if err == nil {
		value, err = st.completeValue(ctx, def.Type, objectType.Name, cf, value, loc)
	}
	if err != nil {
		if schema.IsNonNull(def.Type) {
			return nil, err
		}
		st.errors.add(err, loc)
		return nil, nil
	}
	return value, nil
}

func (st *executionState) resolveField(ctx context.Context, objectType *schema.Type, def *schema.Field, cf *collectedField, source any, loc location) (any, error) {
	args, err := bindArguments(st.schema, def, cf.Fields[0].Arguments, st.bindings)
	if err != nil {
		return nil, &FieldResolutionError{Path: loc.path, Err: err}
	}
	if ctx.Err() != nil {
		return nil, &FieldResolutionError{Path: loc.path, Err: context.Cause(ctx)}
	}

	var value any
	if def.Async {
		value, err = st.resolveAsync(ctx, AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      def.Name,
			Source:     source,
			Args:       args,
			Path:       loc.path,
		})
	} else {
		value, err = st.runtime.ResolveSync(ctx, objectType.Name, def.Name, source, args)
	}
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			err = context.Cause(ctx)
		}
		return nil, &FieldResolutionError{Path: loc.path, Err: err}
	}
	return value, nil
}

// resolveAsync calls the runtime and stops waiting as soon as ctx is done.
func (st *executionState) resolveAsync(ctx context.Context, task AsyncResolveTask) (any, error) {
	if st.sem != nil {
		if err := st.sem.Acquire(ctx, 1); err != nil {
			return nil, context.Cause(ctx)
		}
		defer st.sem.Release(1)
	}

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := st.runtime.ResolveAsync(ctx, task)
		ch <- outcome{v, err}
	}()
	select {
	case o := <-ch:
		return o.value, o.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// completeValue completes a value
func (st *executionState) completeValue(ctx context.Context, fieldType *schema.TypeRef, parentType string, cf *collectedField, result any, loc location) (any, error) {
	if schema.IsNonNull(fieldType) {
		completed, err := st.completeValue(ctx, schema.Unwrap(fieldType), parentType, cf, result, loc)
		if err != nil {
			return nil, err
		}
		if completed == nil {
			return nil, &FieldResolutionError{
				Path: loc.path,
				Err:  fmt.Errorf("cannot return null for non-nullable field %s.%s", parentType, cf.Name),
			}
		}
		return completed, nil
	}

	if isNullish(result) {
		return nil, nil
	}
	if err, ok := result.(error); ok {
		return nil, &FieldResolutionError{Path: loc.path, Err: err}
	}

	if schema.IsList(fieldType) {
		return st.completeListValue(ctx, fieldType, parentType, cf, result, loc)
	}

	namedType := schema.GetNamedType(fieldType)
	typeObj := st.schema.Types[namedType]
	if typeObj == nil {
		return nil, &FieldResolutionError{Path: loc.path, Err: fmt.Errorf("unknown type %s", namedType)}
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := st.runtime.SerializeLeafValue(ctx, namedType, result)
		if err != nil {
			return nil, &FieldResolutionError{Path: loc.path, Err: err}
		}
		return serialized, nil
	case schema.TypeKindObject:
		return st.completeObjectValue(ctx, typeObj, cf, result, loc)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return st.completeAbstractValue(ctx, typeObj, cf, result, loc)
	}
	return nil, &FieldResolutionError{Path: loc.path, Err: fmt.Errorf("cannot complete value of unexpected type %s", typeObj.Kind)}
}

// completeListValue completes list elements, concurrently when their type can
// reach async fields. Nullable elements catch their own errors; a failing
// non-null element fails the whole list.
func (st *executionState) completeListValue(ctx context.Context, listType *schema.TypeRef, parentType string, cf *collectedField, result any, loc location) (any, error) {
	items, ok := listItems(result)
	if !ok {
		return nil, &FieldResolutionError{
			Path: loc.path,
			Err:  fmt.Errorf("expected a list value for %s.%s, got %T", parentType, cf.Name, result),
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))

	ctx, prune := context.WithCancelCause(ctx)
	defer prune(nil)

	var failure firstFailure
	completeItem := func(i int) {
		itemLoc := loc.index(i)
		v, err := st.completeValue(ctx, inner, parentType, cf, items[i], itemLoc)
		if err == nil {
			completed[i] = v
			return
		}
		if !schema.IsNonNull(inner) {
			st.errors.add(err, itemLoc)
			return
		}
		failure.offer(i, err)
		prune(errBranchPruned)
	}

	if len(items) > 1 && st.concurrent[schema.GetNamedType(inner)] {
		var g errgroup.Group
		for i := range items {
			g.Go(func() error {
				completeItem(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range items {
			if isPruned(ctx) {
				break
			}
			completeItem(i)
		}
	}

	if index, err := failure.get(); err != nil {
		return nil, &ListExecutionError{Path: loc.path, Index: index, Err: err}
	}
	return completed, nil
}

func (st *executionState) completeObjectValue(ctx context.Context, objectType *schema.Type, cf *collectedField, result any, loc location) (any, error) {
	fields, err := st.collectSubfields(objectType, cf)
	if err != nil {
		return nil, &FieldResolutionError{Path: loc.path, Err: err}
	}
	m, err := st.executeFields(ctx, objectType, result, fields, loc, false)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (st *executionState) completeAbstractValue(ctx context.Context, abstractType *schema.Type, cf *collectedField, result any, loc location) (any, error) {
	typeName, err := st.runtime.ResolveType(ctx, abstractType.Name, result)
	if err != nil {
		return nil, &FieldResolutionError{Path: loc.path, Err: err}
	}
	objectType := st.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject || !st.schema.IsPossibleType(abstractType.Name, typeName) {
		return nil, &FieldResolutionError{
			Path: loc.path,
			Err:  fmt.Errorf("abstract type %s must resolve to one of its object types at runtime, got %q", abstractType.Name, typeName),
		}
	}
	return st.completeObjectValue(ctx, objectType, cf, result, loc)
}

// collectSubfields collects the merged sub-selection of cf for objectType.
// Every element of a list shares the same result.
func (st *executionState) collectSubfields(objectType *schema.Type, cf *collectedField) ([]*collectedField, error) {
	key := subfieldKey{objectType: objectType.Name, field: cf}
	if v, ok := st.subfields.Load(key); ok {
		return v.([]*collectedField), nil
	}
	fields, err := collectFields(st.document, st.schema, st.bindings, objectType, cf.selectionSet())
	if err != nil {
		return nil, err
	}
	v, _ := st.subfields.LoadOrStore(key, fields)
	return v.([]*collectedField), nil
}

// recordRoot records a failure that nulled the whole response at the root
// field it came from.
func (st *executionState) recordRoot(err error, fields []*collectedField) {
	var ferr *FieldResolutionError
	if errors.As(err, &ferr) && len(ferr.Path) > 0 {
		if key, ok := ferr.Path[0].(string); ok {
			for i, cf := range fields {
				if cf.ResponseName == key {
					st.errors.add(err, location{}.field(key, i))
					return
				}
			}
		}
	}
	st.errors.add(err, location{})
}

// firstFailure keeps the failure of the lowest-indexed sibling, preferring
// real failures over cancellations caused by pruning.
type firstFailure struct {
	mu    sync.Mutex
	index int
	err   error
}

func (f *firstFailure) offer(i int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.index, f.err = i, err
		return
	}
	havePruned, newPruned := errors.Is(f.err, errBranchPruned), errors.Is(err, errBranchPruned)
	if (havePruned && !newPruned) || (havePruned == newPruned && i < f.index) {
		f.index, f.err = i, err
	}
}

func (f *firstFailure) get() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index, f.err
}

func isPruned(ctx context.Context) bool {
	return ctx.Err() != nil && errors.Is(context.Cause(ctx), errBranchPruned)
}

type collectedError struct {
	err   GraphQLError
	order []int
}

// errorCollector gathers located errors from concurrent branches.
type errorCollector struct {
	mu    sync.Mutex
	items []collectedError
}

// add records err at loc. Cancellations caused by pruning are dropped since
// the value they belonged to is no longer part of the response.
func (c *errorCollector) add(err error, loc location) {
	if errors.Is(err, errBranchPruned) {
		return
	}
	gerr := GraphQLError{
		Message:    errorMessage(err),
		Path:       loc.path,
		Extensions: map[string]any{"code": ErrorCode(err)},
	}
	var ferr *FieldResolutionError
	if errors.As(err, &ferr) && !ferr.Path.Equal(loc.path) {
		gerr.Extensions["origin"] = ferr.Path
	}
	c.mu.Lock()
	c.items = append(c.items, collectedError{err: gerr, order: loc.order})
	c.mu.Unlock()
}

// sorted returns the errors in document order.
func (c *errorCollector) sorted() []GraphQLError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return nil
	}
	slices.SortStableFunc(c.items, func(a, b collectedError) int {
		return slices.Compare(a.order, b.order)
	})
	out := make([]GraphQLError, len(c.items))
	for i, it := range c.items {
		out[i] = it.err
	}
	return out
}

// concurrentTypes returns the types from which a selection can reach an async
// field. List elements of these types are completed concurrently.
func concurrentTypes(s *schema.Schema) map[string]bool {
	out := make(map[string]bool)
	for name, t := range s.Types {
		for _, f := range t.Fields {
			if f.Async {
				out[name] = true
				break
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for name, t := range s.Types {
			if out[name] {
				continue
			}
			reach := false
			for _, f := range t.Fields {
				if out[f.Type.GetNamedType()] {
					reach = true
					break
				}
			}
			if !reach && t.IsAbstract() {
				for other, ot := range s.Types {
					if ot.Kind == schema.TypeKindObject && out[other] && s.IsPossibleType(name, other) {
						reach = true
						break
					}
				}
			}
			if reach {
				out[name] = true
				changed = true
			}
		}
	}
	return out
}

func listItems(result any) ([]any, bool) {
	if direct, ok := result.([]any); ok {
		return direct, true
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
