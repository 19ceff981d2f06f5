// internal/core/api/service.go

// Package api provides the gRPC rewrite service.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code; the field layout of each message is documented on the
// handler and produced by the helpers in convert.go.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/query"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/selection"
	"github.com/solatis/quill/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "quill.rewrite.v1.RewriteService"

// Full method names, as seen by interceptors.
const (
	RewriteMethod     = "/" + ServiceName + "/Rewrite"
	ActionsMethod     = "/" + ServiceName + "/Actions"
	ReloadRulesMethod = "/" + ServiceName + "/ReloadRules"
)

// RewriteServer is the server API of the rewrite service.
type RewriteServer interface {
	Rewrite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Actions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the rewrite service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RewriteServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Rewrite", Handler: unaryHandler(RewriteMethod, RewriteServer.Rewrite)},
		{MethodName: "Actions", Handler: unaryHandler(ActionsMethod, RewriteServer.Actions)},
		{MethodName: "ReloadRules", Handler: unaryHandler(ReloadRulesMethod, RewriteServer.ReloadRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quill/rewrite/v1/rewrite.proto",
}

type unaryMethod func(RewriteServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RewriteServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RewriteServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterRewriteServer registers srv with s.
func RegisterRewriteServer(s grpc.ServiceRegistrar, srv RewriteServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Reloader reloads the active rule set and returns its rule count.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// RewriteService implements RewriteServer.
// Thin orchestration layer over the rewriter, the strategy registry and the reloader.
type RewriteService struct {
	cfg      config.ServerConfig
	rewriter *rewrite.Rewriter
	registry *selection.Registry
	reloader Reloader
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewRewriteService creates the service. reloader and m may be nil.
func NewRewriteService(cfg config.ServerConfig, rewriter *rewrite.Rewriter, registry *selection.Registry, reloader Reloader, m *metrics.Metrics, log *logger.Logger) (*RewriteService, error) {
	if rewriter == nil {
		return nil, fmt.Errorf("rewriter cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RewriteService{
		cfg:      cfg,
		rewriter: rewriter,
		registry: registry,
		reloader: reloader,
		metrics:  m,
		log:      log.WithComponent("api"),
	}, nil
}

// Rewrite rewrites one query.
//
// Request:  {query: string, strategy?: string, params?: {name: string|number|bool|list}}
// Response: {request_id, query, user_query, raw, filters[], boost_up[], boost_down[],
//
//	decorations[{key, value}], applied[{id, log}], matched}
func (s *RewriteService) Rewrite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := decodeRequest(req, s.cfg.MaxQueryLength)
	if err != nil {
		s.metrics.ObserveRewrite(metrics.ResultError, time.Since(start), 0, 0)
		return nil, toStatus(err)
	}
	strategy, err := s.registry.Resolve(r.Strategy, r.Params)
	if err != nil {
		s.metrics.ObserveRewrite(metrics.ResultError, time.Since(start), 0, 0)
		return nil, toStatus(err)
	}

	q := query.NewExpandedQuery(query.ParseUserQuery(r.Query))
	res, err := s.rewriter.Rewrite(ctx, q, strategy)
	if err != nil {
		s.metrics.ObserveRewrite(metrics.ResultError, time.Since(start), 0, 0)
		s.log.WithContext(ctx).WithError(err).Warn("rewrite failed", "strategy", strategy.Name())
		return nil, toStatus(err)
	}

	outcome := metrics.ResultOK
	if q.IsRaw() {
		outcome = metrics.ResultRaw
	}
	s.metrics.ObserveRewrite(outcome, time.Since(start), res.Matched, len(res.Applied))

	return encodeResult(ctx, res)
}

// Actions returns the actions selected for a query without applying them.
//
// Request:  {query: string, strategy?: string, params?: {...}}
// Response: {request_id, actions[{ids[], start, end, matches[], instructions[]}]}
func (s *RewriteService) Actions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := decodeRequest(req, s.cfg.MaxQueryLength)
	if err != nil {
		return nil, toStatus(err)
	}
	strategy, err := s.registry.Resolve(r.Strategy, r.Params)
	if err != nil {
		return nil, toStatus(err)
	}

	bq, ok := query.ParseUserQuery(r.Query).(*query.BooleanQuery)
	if !ok {
		// raw queries are opaque to rules
		return encodeActions(ctx, nil)
	}
	seq, _ := query.Flatten(bq)
	actions, err := s.rewriter.Actions(seq, strategy)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}
	return encodeActions(ctx, actions)
}

// ReloadRules recompiles the configured rule source and swaps it in.
//
// Request:  {}
// Response: {request_id, rules: number}
func (s *RewriteService) ReloadRules(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.reloader == nil {
		return nil, toStatus(fmt.Errorf("%w: reload is not configured", types.ErrNoRules))
	}
	n, err := s.reloader.Reload(ctx)
	if err != nil {
		return nil, reloadStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"request_id": requestID(ctx),
		"rules":      n,
	})
}

func (s *RewriteService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func requestID(ctx context.Context) string {
	id, _ := logger.RequestIDFromContext(ctx)
	return id
}
