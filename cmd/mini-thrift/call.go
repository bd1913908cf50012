package main

import (
	"context"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"mini-thrift/client"
	"mini-thrift/codec"
	"mini-thrift/config"
	"mini-thrift/loadbalance"
	"mini-thrift/log"
	"mini-thrift/middleware"
	"mini-thrift/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newCallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call METHOD [ARG]",
		Short: "Call a SharedService method and print the result as JSON",
		Long: `Call a SharedService method on an instance found in the registry.

  getStruct KEY   nested structure built from KEY
  echo KEY        a ReferencesOther whose Simple.key is KEY, echoed back
  depth N         depth of a chain of N+1 nodes
  touch KEY       one-way; prints nothing`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: shared.Schema.MethodNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := dial(a.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			out, err := callMethod(cmd.Context(), shared.NewClient(c.For(shared.ServiceName)), args[0], arg)
			if err != nil || out == nil {
				return err
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encode result")
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
}

// dial builds a client from cfg.Client and cfg.Registry.
func dial(cfg *config.Config) (*client.Client, func(), error) {
	reg, err := cfg.Registry.Open(shared.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		return nil, nil, err
	}

	mws := []middleware.Middleware{middleware.LoggingMiddleware(log.L().Named("call"))}
	if cfg.Client.Retries > 0 {
		mws = append(mws, middleware.RetryMiddleware(cfg.Client.Retries, cfg.Client.RetryDelay))
	}
	if cfg.Client.Timeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.Client.Timeout))
	}
	c := client.NewClient(reg, bal,
		client.WithNetwork(cfg.Client.Network),
		client.WithPoolSize(cfg.Client.PoolSize),
		client.WithDialTimeout(cfg.Client.DialTimeout),
		client.WithDialRetries(cfg.Client.DialRetries),
		client.WithTransport(cfg.Protocol.Layers()...),
		client.WithProtocol(cfg.Protocol.NewProtocol()),
		client.WithMiddleware(mws...),
	)
	closeFn := func() {
		_ = c.Close()
		if closer, ok := reg.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return c, closeFn, nil
}

// callMethod runs method with its textual argument. A nil result means the
// method returns nothing.
func callMethod(ctx context.Context, sc *shared.Client, method, arg string) (any, error) {
	num := func() (codec.I32, error) {
		if arg == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "%s wants an integer argument", method)
		}
		return codec.I32(n), nil
	}

	switch method {
	case shared.MethodGetStruct.Name:
		key, err := num()
		if err != nil {
			return nil, err
		}
		return sc.GetStruct(ctx, key)
	case shared.MethodEcho.Name:
		in := shared.ReferencesOther{
			Another: shared.Simple{Key: codec.String(arg)},
			Map:     shared.IndexMap{int32Len(arg): shared.StringList{codec.String(arg)}},
		}
		return sc.Echo(ctx, in)
	case shared.MethodDepth.Name:
		n, err := num()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.Newf("depth wants a non-negative integer, got %d", n)
		}
		return sc.Depth(ctx, shared.Chain(int(n)))
	case shared.MethodTouch.Name:
		key, err := num()
		if err != nil {
			return nil, err
		}
		return nil, sc.Touch(ctx, key)
	default:
		return nil, errors.Newf("unknown method %q, want one of %v", method, shared.Schema.MethodNames())
	}
}

func int32Len(s string) codec.I32 { return codec.I32(len(s)) }
