package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// registrySuite runs the same contract against every implementation.
type registrySuite struct {
	suite.Suite
	reg     Registry
	service string
}

func (s *registrySuite) TestRegisterAndDiscover() {
	ctx := context.Background()
	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	s.Require().NoError(s.reg.Register(ctx, s.service, inst1, 10))
	s.Require().NoError(s.reg.Register(ctx, s.service, inst2, 10))

	instances, err := s.reg.Discover(ctx, s.service)
	s.Require().NoError(err)
	s.ElementsMatch([]ServiceInstance{inst1, inst2}, instances)

	s.Require().NoError(s.reg.Deregister(ctx, s.service, inst1.Addr))
	s.Eventually(func() bool {
		instances, err := s.reg.Discover(ctx, s.service)
		return err == nil && len(instances) == 1 && instances[0].Addr == inst2.Addr
	}, 2*time.Second, 20*time.Millisecond)

	s.Require().NoError(s.reg.Deregister(ctx, s.service, inst2.Addr))
}

func (s *registrySuite) TestWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.reg.Watch(ctx, s.service)

	inst := ServiceInstance{Addr: "127.0.0.1:9001", Weight: 1}
	s.Require().NoError(s.reg.Register(context.Background(), s.service, inst, 10))

	s.Eventually(func() bool {
		select {
		case list := <-ch:
			return len(list) == 1 && list[0].Addr == inst.Addr
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	s.Require().NoError(s.reg.Deregister(context.Background(), s.service, inst.Addr))
	cancel()
	s.Eventually(func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 20*time.Millisecond, "watch channel closes with its context")
}

func TestStaticRegistry(t *testing.T) {
	suite.Run(t, &registrySuite{reg: NewStaticRegistry(), service: "SharedService"})
}

// The etcd suite needs a live cluster, e.g.
// MINI_THRIFT_ETCD_ENDPOINTS=localhost:2379.
func TestEtcdRegistry(t *testing.T) {
	endpoints := os.Getenv("MINI_THRIFT_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("MINI_THRIFT_ETCD_ENDPOINTS not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), 3*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	suite.Run(t, &registrySuite{reg: reg, service: "RegistryTest-" + time.Now().Format("150405.000")})
}

func TestStaticRegistryFor(t *testing.T) {
	r := NewStaticRegistryFor("svc", "a:1", "b:2")
	got, err := r.Discover(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{{Addr: "a:1", Weight: 1}, {Addr: "b:2", Weight: 1}}, got)

	got[0].Addr = "mutated"
	again, _ := r.Discover(context.Background(), "svc")
	assert.Equal(t, "a:1", again[0].Addr, "Discover returns a copy")

	require.NoError(t, r.Register(context.Background(), "svc", ServiceInstance{Addr: "a:1", Weight: 7}, 0))
	again, _ = r.Discover(context.Background(), "svc")
	assert.Len(t, again, 2)
}
