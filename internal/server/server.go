// Package server serves GraphQL over HTTP on top of an executor.Runtime.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/docexec/internal/document"
	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
	executor "github.com/hanpama/docexec/internal/executor"
	introspection "github.com/hanpama/docexec/internal/introspection"
	logging "github.com/hanpama/docexec/internal/logging"
	reqid "github.com/hanpama/docexec/internal/reqid"
	schema "github.com/hanpama/docexec/internal/schema"
)

// CodeParseFailed is reported for query text that does not parse.
const CodeParseFailed = "GRAPHQL_PARSE_FAILED"

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, prepares and executes operations, and writes results in
// the GraphQL response format.
type Handler struct {
	exec  *executor.Executor
	opt   Options
	cache *lru.Cache[uint64, *executor.PreparedOperation]
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// CacheSize is the number of prepared operations kept. 0 disables the
	// cache.
	CacheSize int

	// Introspection serves __schema and __type.
	Introspection bool

	// RootValue is the source of root fields.
	RootValue any

	Logger   *zap.Logger
	Executor []executor.Option
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithCacheSize(n int) Option           { return func(o *Options) { o.CacheSize = n } }
func WithIntrospection(enable bool) Option { return func(o *Options) { o.Introspection = enable } }
func WithRootValue(v any) Option           { return func(o *Options) { o.RootValue = v } }
func WithLogger(l *zap.Logger) Option      { return func(o *Options) { o.Logger = l } }

// WithExecutorOptions configures the executor behind the handler.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(o *Options) { o.Executor = append(o.Executor, opts...) }
}

// New creates a GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, CacheSize: 1000, Introspection: true, Logger: zap.NewNop()}
	for _, f := range opts {
		f(&op)
	}
	if op.Introspection {
		runtime, sch = introspection.Wrap(runtime, sch)
	}
	h := &Handler{
		exec: executor.NewExecutor(runtime, sch, append([]executor.Option{executor.WithLogger(op.Logger)}, op.Executor...)...),
		opt:  op,
	}
	if op.CacheSize > 0 {
		cache, err := lru.New[uint64, *executor.PreparedOperation](op.CacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = cache
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	status, ops := http.StatusOK, 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Path: r.URL.Path, RemoteAddr: r.RemoteAddr})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     status,
			Operations: ops,
			Duration:   time.Since(start),
		})
	}()

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		h.writeJSON(w, status, requestError("method not allowed"))
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.forwardedMetadata(r, rid))

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if errors.Is(berr, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, requestError(berr.Error()))
		return
	}

	if batch != nil {
		ops = len(batch)
		out := make([]*response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, r.Method, batch[i])
		}
		h.writeJSON(w, status, out)
		return
	}

	ops = 1
	res := h.executeOne(ctx, r.Method, req)
	if res.status != 0 {
		status = res.status
	}
	h.writeJSON(w, status, res)
}

// forwardedMetadata copies the configured headers and the request ID into
// outgoing gRPC metadata.
func (h *Handler) forwardedMetadata(r *http.Request, rid string) metadata.MD {
	md := metadata.MD{}
	for _, hdr := range h.opt.MetadataHeaders {
		if v := r.Header.Values(hdr); len(v) > 0 {
			md[strings.ToLower(hdr)] = v
		}
	}
	md[strings.ToLower(reqid.Header)] = []string{rid}
	return md
}

func (h *Handler) executeOne(ctx context.Context, method string, req GraphQLRequest) *response {
	key := xxhash.Sum64String(req.OperationName + "\x00" + req.Query)
	prepared, cached, res := h.prepare(key, req)
	if res != nil {
		return res
	}
	if !cached {
		h.logger(ctx).Debug("prepared operation",
			zap.String("operation", prepared.Name()),
			zap.Bool("cacheable", h.cache != nil))
	}
	if method == http.MethodGet && prepared.Kind() != document.Query {
		res := requestError("only query operations are allowed over GET")
		res.status = http.StatusMethodNotAllowed
		return res
	}

	op := events.Operation{Name: prepared.Name(), Type: string(prepared.Kind()), Hash: key}
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Operation: op, Cached: cached})
	result := h.exec.Execute(ctx, prepared, req.Variables, h.opt.RootValue)
	errs := make([]error, len(result.Errors))
	codes := make([]string, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
		codes[i], _ = result.Errors[i].Extensions["code"].(string)
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Operation:  op,
		Errors:     errs,
		ErrorCodes: codes,
		Duration:   time.Since(start),
	})
	return toResponse(result)
}

// prepare returns the prepared operation for req and whether it came from the
// cache under key. On failure it returns the error response instead.
func (h *Handler) prepare(key uint64, req GraphQLRequest) (*executor.PreparedOperation, bool, *response) {
	if h.cache != nil {
		if p, ok := h.cache.Get(key); ok {
			return p, true, nil
		}
	}

	doc, err := document.Parse(req.Query)
	if err != nil {
		return nil, false, parseError(err)
	}
	prepared, err := h.exec.Prepare(doc, req.OperationName)
	if err != nil {
		return nil, false, &response{Errors: []responseError{{
			Message:    err.Error(),
			Extensions: map[string]any{"code": executor.ErrorCode(err)},
		}}}
	}
	if h.cache != nil {
		h.cache.Add(key, prepared)
	}
	return prepared, false, nil
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

var (
	errBodyTooLarge = errors.New("body too large")
	errMissingQuery = errors.New("missing 'query'")
)

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, errMissingQuery
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, errors.New("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, errors.New("unsupported Content-Type")
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errBodyTooLarge
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, errors.New("invalid JSON")
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, errors.New("empty batch")
		}
		return GraphQLRequest{}, arr, nil
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, errMissingQuery
	}
	return req, nil, nil
}

// ------------------ Response formatting ------------------

type responseLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type responseError struct {
	Message    string             `json:"message"`
	Locations  []responseLocation `json:"locations,omitempty"`
	Path       executor.Path      `json:"path,omitempty"`
	Extensions map[string]any     `json:"extensions,omitempty"`
}

type response struct {
	Data   any             `json:"data"`
	Errors []responseError `json:"errors,omitempty"`

	// status overrides the HTTP status of a single request.
	status int
}

func requestError(msg string) *response {
	return &response{Errors: []responseError{{Message: msg}}}
}

func parseError(err error) *response {
	re := responseError{Message: err.Error(), Extensions: map[string]any{"code": CodeParseFailed}}
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		re.Message = gerr.Message
		for _, l := range gerr.Locations {
			re.Locations = append(re.Locations, responseLocation{Line: l.Line, Column: l.Column})
		}
	}
	return &response{Errors: []responseError{re}}
}

func toResponse(res *executor.ExecutionResult) *response {
	out := &response{}
	if res.Data != nil {
		out.Data = res.Data
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, responseError{Message: e.Message, Path: e.Path, Extensions: e.Extensions})
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.opt.Logger.Debug("write response", zap.Error(err))
	}
}

// logger returns the handler logger bound to the request in ctx.
func (h *Handler) logger(ctx context.Context) *zap.Logger {
	return logging.WithRequest(ctx, h.opt.Logger)
}
