package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domain "github.com/josepablo-design/marketplace/internal/entity"
	"github.com/josepablo-design/marketplace/internal/logging"
)

func init() {
	logging.SetBase(logging.Discard())
}

var (
	ErrMockStore   = errors.New("mock store error")
	ErrMockGateway = errors.New("mock gateway error")
)

// memStore implements ProductRepo and OrderRepo over maps, applying
// transitions the same way the SQL stores do.
type memStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	orders   map[string]*domain.Order

	CreateErr     error
	AttachErr     error
	TransitionErr error
	// OnTransition runs before each transition; a non-nil error fails it.
	OnTransition  func(ctx context.Context) error
	ProductWrites int
}

func newMemStore() *memStore {
	return &memStore{products: map[string]*domain.Product{}, orders: map[string]*domain.Order{}}
}

func (m *memStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &p
}

func (m *memStore) addOrder(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

func (m *memStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

func (m *memStore) order(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// orderRepo adapts memStore to OrderRepo (GetByID clashes with ProductRepo).
type orderRepo struct{ *memStore }

func (r orderRepo) Create(ctx context.Context, o *domain.Order) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.addOrder(*o)
	return nil
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r orderRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaymentIntentID == intentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r orderRepo) AttachPaymentIntent(ctx context.Context, orderID, intentID string) (bool, error) {
	if r.AttachErr != nil {
		return false, r.AttachErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.PaymentIntentID != "" {
		return false, nil
	}
	o.PaymentIntentID = intentID
	return true, nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.BuyerID == userID || o.SellerID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r orderRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusPending && o.CreatedAt.Before(before) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) Transition(ctx context.Context, t Transition) (TransitionResult, error) {
	if r.TransitionErr != nil {
		return TransitionResult{}, r.TransitionErr
	}
	if r.OnTransition != nil {
		if err := r.OnTransition(ctx); err != nil {
			return TransitionResult{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[t.OrderID]
	if !ok {
		return TransitionResult{}, ErrNotFound
	}
	var res TransitionResult
	for _, from := range t.From {
		if o.Status == from {
			o.Status = t.To
			if t.PaymentIntentID != "" && o.PaymentIntentID == "" {
				o.PaymentIntentID = t.PaymentIntentID
			}
			res.OrderChanged = true
			break
		}
	}
	if res.OrderChanged && t.Product != nil {
		p := r.products[o.ProductID]
		blocked := false
		if t.Product.UnlessPaidElsewhere {
			for _, other := range r.orders {
				if other.ID != o.ID && other.ProductID == o.ProductID && other.Status == domain.StatusPaid {
					blocked = true
				}
			}
		}
		if p != nil && p.Status == t.Product.From && !blocked {
			p.Status = t.Product.To
			r.ProductWrites++
			res.ProductChanged = true
		}
	}
	cp := *o
	res.Order = &cp
	return res, nil
}

type fakeGateway struct {
	mu           sync.Mutex
	CreateFunc   func(req IntentRequest) (Intent, error)
	Intents      map[string]Intent
	RefundErr    error
	CreateCalls  []IntentRequest
	CancelCalls  []string
	RefundCalls  []string
	RefundAmount *int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{Intents: map[string]Intent{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateCalls = append(g.CreateCalls, req)
	if g.CreateFunc != nil {
		return g.CreateFunc(req)
	}
	in := Intent{ID: "pi_" + req.OrderID, ClientSecret: "pi_" + req.OrderID + "_secret", Amount: req.AmountMinor, Currency: req.Currency, Status: IntentRequiresPaymentMethod}
	g.Intents[in.ID] = in
	return in, nil
}

func (g *fakeGateway) GetIntent(ctx context.Context, id string) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.Intents[id]
	if !ok {
		return Intent{}, ErrMockGateway
	}
	return in, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CancelCalls = append(g.CancelCalls, id)
	return nil
}

func (g *fakeGateway) Refund(ctx context.Context, id string, amount *int64) (RefundRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundCalls = append(g.RefundCalls, id)
	g.RefundAmount = amount
	if g.RefundErr != nil {
		return RefundRecord{}, g.RefundErr
	}
	amt := int64(0)
	if amount != nil {
		amt = *amount
	}
	return RefundRecord{ID: "re_1", IntentID: id, Amount: amt, Status: "succeeded"}, nil
}

type memIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
	Err    error
}

func newMemIdem() *memIdem {
	return &memIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdem) TryLock(ctx context.Context, scope, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[scope+":"+key] {
		return false, nil
	}
	m.locks[scope+":"+key] = true
	return true, nil
}

func (m *memIdem) Release(ctx context.Context, scope, key string) error {
	// redis refuses commands on a done context
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

func (m *memIdem) Remember(ctx context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *memIdem) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

type memCache struct {
	mu     sync.Mutex
	status map[string]string
}

func newMemCache() *memCache { return &memCache{status: map[string]string{}} }

func (c *memCache) SetStatus(ctx context.Context, id, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[id] = status
	return nil
}

func (c *memCache) GetStatus(ctx context.Context, id string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.status[id]
	return s, ok, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	Msgs []SettledMsg
}

func (p *recordingPublisher) PublishSettled(ctx context.Context, msg SettledMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Msgs = append(p.Msgs, msg)
	return nil
}

type memConversations struct {
	convs    map[string]string
	Messages []string
	Err      error
}

func (m *memConversations) FindOrCreateConversation(ctx context.Context, productID, buyerID, sellerID string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.convs == nil {
		m.convs = map[string]string{}
	}
	k := productID + "|" + buyerID + "|" + sellerID
	if id, ok := m.convs[k]; ok {
		return id, nil
	}
	m.convs[k] = "conv-" + productID
	return m.convs[k], nil
}

func (m *memConversations) InsertMessage(ctx context.Context, convID, senderID, content string) error {
	m.Messages = append(m.Messages, convID+"|"+senderID+"|"+content)
	return nil
}
