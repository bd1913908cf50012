package shared

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"mini-thrift/client"
	"mini-thrift/codec"
	"mini-thrift/log"
	"mini-thrift/service"
)

// ServiceName is the name SharedService is published under.
const ServiceName = "SharedService"

var (
	MethodGetStruct = service.NewMethod("getStruct", service.Returns[DeeplyNested](),
		service.Arg[codec.I32]("key", 1))
	MethodEcho = service.NewMethod("echo", service.Returns[ReferencesOther](),
		service.Arg[ReferencesOther]("value", 1))
	MethodDepth = service.NewMethod("depth", service.Returns[codec.I32](),
		service.Arg[Node]("tree", 1))
	MethodTouch = service.NewOneWay("touch", service.Arg[codec.I32]("key", 1))

	Schema = service.NewSchema(ServiceName, MethodGetStruct, MethodEcho, MethodDepth, MethodTouch)
)

// SharedService is implemented by handlers bound to Schema.
type SharedService interface {
	GetStruct(ctx context.Context, key codec.I32) (DeeplyNested, error)
	Echo(ctx context.Context, value ReferencesOther) (ReferencesOther, error)
	Depth(ctx context.Context, tree Node) (codec.I32, error)
	Touch(ctx context.Context, key codec.I32) error
}

// NewProcessor binds h to Schema.
func NewProcessor(h SharedService, opts ...service.Option) (*service.Processor, error) {
	return service.NewProcessor(Schema, h, opts...)
}

// Handler is the reference SharedService.
type Handler struct {
	mu      sync.Mutex
	touched []codec.I32
}

var _ SharedService = (*Handler)(nil)

// GetStruct returns a DeeplyNested whose innermost set holds key and
// key+1.
func (h *Handler) GetStruct(_ context.Context, key codec.I32) (DeeplyNested, error) {
	set := codec.NewSet[codec.I32](key, key+1)
	return DeeplyNested{Nested: Nested3{Nested2{Nested1{set}}}}, nil
}

func (h *Handler) Echo(_ context.Context, value ReferencesOther) (ReferencesOther, error) {
	return value, nil
}

func (h *Handler) Depth(_ context.Context, tree Node) (codec.I32, error) {
	return codec.I32(tree.Depth()), nil
}

func (h *Handler) Touch(_ context.Context, key codec.I32) error {
	h.mu.Lock()
	h.touched = append(h.touched, key)
	h.mu.Unlock()
	log.L().Debug("touched", zap.Int32("key", int32(key)))
	return nil
}

// Touched returns the keys received by Touch, oldest first.
func (h *Handler) Touched() []codec.I32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]codec.I32(nil), h.touched...)
}

// Client is a typed SharedService client.
type Client struct {
	c client.Caller
}

// NewClient wraps c, which is either a *client.Stub or the Caller returned
// by (*client.Client).For(ServiceName).
func NewClient(c client.Caller) *Client {
	return &Client{c: c}
}

func (c *Client) GetStruct(ctx context.Context, key codec.I32) (DeeplyNested, error) {
	var out DeeplyNested
	err := c.c.Call(ctx, MethodGetStruct, &out, &key)
	return out, err
}

func (c *Client) Echo(ctx context.Context, value ReferencesOther) (ReferencesOther, error) {
	var out ReferencesOther
	err := c.c.Call(ctx, MethodEcho, &out, &value)
	return out, err
}

func (c *Client) Depth(ctx context.Context, tree Node) (codec.I32, error) {
	var out codec.I32
	err := c.c.Call(ctx, MethodDepth, &out, &tree)
	return out, err
}

// Touch returns once the call is written; the server sends nothing back.
func (c *Client) Touch(ctx context.Context, key codec.I32) error {
	return c.c.Call(ctx, MethodTouch, nil, &key)
}
