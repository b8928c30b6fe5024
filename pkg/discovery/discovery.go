package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/example/foodorder/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const leaseTTL = 30

// Registry announces API instances in etcd under <prefix><name>/<host>:<port>.
type Registry struct {
	client *clientv3.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

type Instance struct {
	Name string
	Host string
	Port int
}

func (i Instance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewRegistry(cfg *config.EtcdConfig, logger *zap.Logger) (*Registry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Registry{
		client: cli,
		prefix: cfg.Prefix,
		logger: logger.Named("discovery"),
		leases: make(map[string]clientv3.LeaseID),
	}, nil
}

func instanceKey(prefix string, in Instance) string {
	return fmt.Sprintf("%s%s/%s", prefix, in.Name, in.Addr())
}

// Register puts the instance under a lease that is kept alive until ctx is
// cancelled or Deregister is called.
func (r *Registry) Register(ctx context.Context, in Instance) error {
	lease, err := r.client.Grant(ctx, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	key := instanceKey(r.prefix, in)
	if _, err := r.client.Put(ctx, key, in.Addr(), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()

	go func() {
		for range ch {
		}
		r.logger.Info("lease keep-alive stopped", zap.String("key", key))
	}()

	r.logger.Info("service registered", zap.String("key", key), zap.Int64("lease", int64(lease.ID)))
	return nil
}

func (r *Registry) Discover(ctx context.Context, name string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, fmt.Sprintf("%s%s/", r.prefix, name), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		in, err := parseInstance(name, string(kv.Value))
		if err != nil {
			r.logger.Warn("skipping malformed registration", zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, in)
	}
	return instances, nil
}

func parseInstance(name, addr string) (Instance, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Instance{}, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return Instance{}, fmt.Errorf("invalid port %q", port)
	}
	return Instance{Name: name, Host: host, Port: p}, nil
}

// Deregister removes the instance and revokes its lease.
func (r *Registry) Deregister(ctx context.Context, in Instance) error {
	key := instanceKey(r.prefix, in)

	r.mu.Lock()
	lease, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		if _, err := r.client.Revoke(ctx, lease); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
		return nil
	}
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.client.Close()
}
