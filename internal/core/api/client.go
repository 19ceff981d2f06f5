// internal/core/api/client.go
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote RewriteService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Rewrite calls RewriteService/Rewrite.
func (c *Client) Rewrite(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RewriteMethod, in, opts...)
}

// Actions calls RewriteService/Actions.
func (c *Client) Actions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ActionsMethod, in, opts...)
}

// ReloadRules calls RewriteService/ReloadRules.
func (c *Client) ReloadRules(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ReloadRulesMethod, &structpb.Struct{}, opts...)
}

// NewRewriteRequest builds a Rewrite or Actions request message.
func NewRewriteRequest(q, strategy string, params map[string][]string) (*structpb.Struct, error) {
	m := map[string]any{"query": q}
	if strategy != "" {
		m["strategy"] = strategy
	}
	if len(params) > 0 {
		ps := make(map[string]any, len(params))
		for name, vals := range params {
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			ps[name] = list
		}
		m["params"] = ps
	}
	return structpb.NewStruct(m)
}
