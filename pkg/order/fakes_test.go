package order_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memCatalog struct {
	items map[primitive.ObjectID]*models.MenuItem
	calls int
	err   error
}

func newMemCatalog(items ...*models.MenuItem) *memCatalog {
	c := &memCatalog{items: make(map[primitive.ObjectID]*models.MenuItem)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *memCatalog) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.MenuItem, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	var out []*models.MenuItem
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memLedger struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]models.Order
	creates   int
	updates   int
	conflicts int
	err       error

	// afterRead runs once, after the next FindByID or FindByPaymentID has
	// taken its copy, to let a second writer land in between.
	afterRead func()
}

func newMemLedger() *memLedger {
	return &memLedger{orders: make(map[primitive.ObjectID]models.Order)}
}

func (l *memLedger) Create(_ context.Context, o *models.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	o.ID = primitive.NewObjectID()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	l.orders[o.ID] = cloneOrder(o)
	l.creates++
	return nil
}

func (l *memLedger) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	defer l.runAfterRead()
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneOrder(&o)
	return &cp, nil
}

func (l *memLedger) FindByPaymentID(_ context.Context, paymentID string) (*models.Order, error) {
	defer l.runAfterRead()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.orders {
		if o.PaymentID == paymentID {
			cp := cloneOrder(&o)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (l *memLedger) runAfterRead() {
	l.mu.Lock()
	hook := l.afterRead
	l.afterRead = nil
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (l *memLedger) Transition(_ context.Context, o *models.Order, from models.OrderStatus, fromPayment models.PaymentStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.orders[o.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if l.conflicts > 0 {
		l.conflicts--
		return repository.ErrConflict
	}
	if cur.Status != from || cur.PaymentStatus != fromPayment {
		return repository.ErrConflict
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.UpdatedAt = o.UpdatedAt
	if o.TransactionID != "" {
		cur.TransactionID = o.TransactionID
	}
	l.orders[o.ID] = cur
	l.updates++
	return nil
}

func (l *memLedger) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	all, _ := l.List(ctx)
	var out []*models.Order
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *memLedger) List(context.Context) ([]*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Order, 0, len(l.orders))
	for _, o := range l.orders {
		cp := cloneOrder(&o)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *memLedger) stored(id primitive.ObjectID) models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orders[id]
}

func cloneOrder(o *models.Order) models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return cp
}

type memCache struct {
	orders      map[string]models.Order
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{orders: make(map[string]models.Order)}
}

func (c *memCache) CacheOrder(_ context.Context, o *models.Order) error {
	c.orders[o.ID.Hex()] = cloneOrder(o)
	return nil
}

func (c *memCache) GetOrderCache(_ context.Context, id string) (*models.Order, error) {
	o, ok := c.orders[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	cp := cloneOrder(&o)
	return &cp, nil
}

func (c *memCache) InvalidateOrder(_ context.Context, id string) error {
	delete(c.orders, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type recordedEntry struct {
	action   string
	entityID string
}

type memAuditor struct {
	entries []recordedEntry
}

func (a *memAuditor) Record(action, entityID string, _ map[string]interface{}) {
	a.entries = append(a.entries, recordedEntry{action: action, entityID: entityID})
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	args := m.Called(ctx, req)
	if intent := args.Get(0); intent != nil {
		return intent.(*payment.Intent), args.Error(1)
	}
	return nil, args.Error(1)
}

var errStore = errors.New("store unavailable")
