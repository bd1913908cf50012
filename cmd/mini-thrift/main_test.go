package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mini-thrift/server"
	"mini-thrift/shared"
	"mini-thrift/transport"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func startShared(t *testing.T) (string, *shared.Handler) {
	t.Helper()
	h := &shared.Handler{}
	proc, err := shared.NewProcessor(h)
	require.NoError(t, err)
	srv, err := server.NewServer(proc, server.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return ln.Addr().String(), h
}

func TestVersion(t *testing.T) {
	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mini-thrift "+version)
}

func TestCallGetStruct(t *testing.T) {
	addr, _ := startShared(t)
	t.Setenv("MINI_THRIFT_REGISTRY_ADDRS", addr)
	t.Setenv("MINI_THRIFT_LOG_LEVEL", "error")

	out, err := run(t, context.Background(), "call", "getStruct", "1")
	require.NoError(t, err)

	var got struct {
		Nested [][][][]int32 `json:"nested"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Nested, 1)
	assert.ElementsMatch(t, []int32{1, 2}, got.Nested[0][0][0])
}

func TestCallDepthAndTouch(t *testing.T) {
	addr, h := startShared(t)
	t.Setenv("MINI_THRIFT_REGISTRY_ADDRS", addr)
	t.Setenv("MINI_THRIFT_LOG_LEVEL", "error")

	out, err := run(t, context.Background(), "call", "depth", "12")
	require.NoError(t, err)
	assert.Equal(t, "12\n", out)

	out, err = run(t, context.Background(), "call", "touch", "9")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Eventually(t, func() bool { return len(h.Touched()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCallRejectsBadInput(t *testing.T) {
	addr, _ := startShared(t)
	t.Setenv("MINI_THRIFT_REGISTRY_ADDRS", addr)
	t.Setenv("MINI_THRIFT_LOG_LEVEL", "error")

	_, err := run(t, context.Background(), "call", "frobnicate")
	assert.ErrorContains(t, err, "unknown method")
	_, err = run(t, context.Background(), "call", "depth", "many")
	assert.ErrorContains(t, err, "integer")
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	t.Setenv("MINI_THRIFT_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := run(t, ctx, "serve", "--addr", addr)
		done <- err
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
		}
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
