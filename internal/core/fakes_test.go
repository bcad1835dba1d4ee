package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/pix"
	"github.com/example/subsmarket/internal/models"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; ok {
		return db.ErrAlreadyExists
	}
	c := *u
	f.users[u.ID] = &c
	return nil
}

func (f *fakeUsers) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "displayName":
			u.DisplayName = v.(string)
		case "phoneNumber":
			u.PhoneNumber = v.(string)
		case "role":
			u.Role = v.(models.Role)
		case "whatsappApiToken":
			u.WhatsappAPIToken = v.(string)
		}
	}
	return nil
}

func (f *fakeUsers) SetLastSeen(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.LastSeen = &at
	return nil
}

func (f *fakeUsers) List(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeServices struct {
	services map[string]*models.SubscriptionService
}

func (f *fakeServices) List(context.Context) ([]*models.SubscriptionService, error) {
	var out []*models.SubscriptionService
	for _, s := range f.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeServices) GetByID(_ context.Context, id string) (*models.SubscriptionService, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (f *fakeServices) Create(_ context.Context, s *models.SubscriptionService) (string, error) {
	s.ID = fmt.Sprintf("svc-%d", len(f.services)+1)
	f.services[s.ID] = s
	return s.ID, nil
}

func (f *fakeServices) Update(_ context.Context, s *models.SubscriptionService) error {
	f.services[s.ID] = s
	return nil
}

func (f *fakeServices) Delete(_ context.Context, id string) error {
	delete(f.services, id)
	return nil
}

type fakePlans struct {
	plans map[string]*models.Plan
}

func (f *fakePlans) ListByService(_ context.Context, serviceID string) ([]*models.Plan, error) {
	var out []*models.Plan
	for _, p := range f.plans {
		if p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlans) ListBySeller(_ context.Context, sellerID string) ([]*models.Plan, error) {
	var out []*models.Plan
	for _, p := range f.plans {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlans) GetByID(_ context.Context, id string) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePlans) Create(_ context.Context, p *models.Plan) (string, error) {
	p.ID = fmt.Sprintf("plan-%d", len(f.plans)+1)
	f.plans[p.ID] = p
	return p.ID, nil
}

func (f *fakePlans) Update(_ context.Context, p *models.Plan) error {
	f.plans[p.ID] = p
	return nil
}

func (f *fakePlans) Delete(_ context.Context, id string) error {
	delete(f.plans, id)
	return nil
}

// fakeDeliverables serialises claims the way the Firestore transaction does.
type fakeDeliverables struct {
	mu    sync.Mutex
	items map[string][]*models.Deliverable
	seq   int
}

func newFakeDeliverables() *fakeDeliverables {
	return &fakeDeliverables{items: map[string][]*models.Deliverable{}}
}

func (f *fakeDeliverables) Add(_ context.Context, planID string, contents []string, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for i, c := range contents {
		f.seq++
		d := &models.Deliverable{
			ID:        fmt.Sprintf("d-%d", f.seq),
			PlanID:    planID,
			Content:   c,
			Status:    models.DeliverableAvailable,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		f.items[planID] = append(f.items[planID], d)
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (f *fakeDeliverables) List(_ context.Context, planID string) ([]*models.Deliverable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Deliverable
	for _, d := range f.items[planID] {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeDeliverables) DeleteAvailable(_ context.Context, planID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[planID]
	for i, d := range items {
		if d.ID != id {
			continue
		}
		if d.Status != models.DeliverableAvailable {
			return db.ErrConflict
		}
		f.items[planID] = append(items[:i], items[i+1:]...)
		return nil
	}
	return db.ErrNotFound
}

func (f *fakeDeliverables) ClaimOldestAvailable(_ context.Context, planID, buyerID string, now time.Time) (*models.Deliverable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *models.Deliverable
	for _, d := range f.items[planID] {
		if d.Status == models.DeliverableAvailable && (oldest == nil || d.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = d
		}
	}
	if oldest == nil {
		return nil, db.ErrNoStock
	}
	oldest.Status = models.DeliverableSold
	oldest.SoldTo = buyerID
	oldest.SoldAt = &now
	c := *oldest
	return &c, nil
}

func (f *fakeDeliverables) available(planID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.items[planID] {
		if d.Status == models.DeliverableAvailable {
			n++
		}
	}
	return n
}

type fakeCoupons struct {
	coupons map[string]*models.Coupon
}

func (f *fakeCoupons) Get(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (f *fakeCoupons) Create(_ context.Context, c *models.Coupon) error {
	if _, ok := f.coupons[c.Code]; ok {
		return db.ErrAlreadyExists
	}
	f.coupons[c.Code] = c
	return nil
}

func (f *fakeCoupons) List(context.Context) ([]*models.Coupon, error) {
	var out []*models.Coupon
	for _, c := range f.coupons {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCoupons) Delete(_ context.Context, code string) error {
	delete(f.coupons, code)
	return nil
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	subs map[string]*models.UserSubscription
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{subs: map[string]*models.UserSubscription{}}
}

func (f *fakeSubscriptions) Create(ctx context.Context, s *models.UserSubscription) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = fmt.Sprintf("sub-%d", len(f.subs)+1)
	c := *s
	f.subs[s.UserID+"/"+s.ID] = &c
	return s.ID, nil
}

func (f *fakeSubscriptions) Get(_ context.Context, userID, id string) (*models.UserSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID+"/"+id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSubscriptions) ListByUser(_ context.Context, userID string) ([]*models.UserSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.UserSubscription
	for _, s := range f.subs {
		if s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeSubscriptions) SetTicketID(_ context.Context, userID, id, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID+"/"+id]
	if !ok {
		return db.ErrNotFound
	}
	s.TicketID = ticketID
	return nil
}

func (f *fakeSubscriptions) SetEndDate(_ context.Context, userID, id string, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID+"/"+id]
	if !ok {
		return db.ErrNotFound
	}
	s.EndDate = end
	return nil
}

type fakeTickets struct {
	mu       sync.Mutex
	tickets  map[string]*models.Ticket
	messages map[string][]*models.ChatMessage
	resets   []string
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{tickets: map[string]*models.Ticket{}, messages: map[string][]*models.ChatMessage{}}
}

func (f *fakeTickets) Create(_ context.Context, t *models.Ticket, seed *models.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = fmt.Sprintf("t-%d", len(f.tickets)+1)
	c := *t
	if seed != nil {
		c.LastMessage = seed.Text
		c.LastMessageAt = seed.Timestamp
		f.messages[t.ID] = append(f.messages[t.ID], seed)
	}
	f.tickets[t.ID] = &c
	return t.ID, nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTickets) ListForUser(_ context.Context, userID string) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.tickets {
		if t.IsParticipant(userID) {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeTickets) AddMessage(_ context.Context, id string, msg *models.ChatMessage, d models.CounterDelta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return "", db.ErrNotFound
	}
	msg.ID = fmt.Sprintf("m-%d", len(f.messages[id])+1)
	f.messages[id] = append(f.messages[id], msg)
	t.LastMessage = msg.Text
	t.LastMessageAt = msg.Timestamp
	t.UnreadBySellerCount += d.SellerIncrement
	t.UnreadByCustomerCount += d.CustomerIncrement
	if d.ResetSeller {
		t.UnreadBySellerCount = 0
	}
	if d.ResetCustomer {
		t.UnreadByCustomerCount = 0
	}
	return msg.ID, nil
}

func (f *fakeTickets) FlagManualDelivery(_ context.Context, id string, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[id].NeedsManualDelivery = flag
	return nil
}

func (f *fakeTickets) ResetUnread(_ context.Context, id string, seller bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seller {
		f.tickets[id].UnreadBySellerCount = 0
	} else {
		f.tickets[id].UnreadByCustomerCount = 0
	}
	f.resets = append(f.resets, id)
	return nil
}

func (f *fakeTickets) ListMessages(_ context.Context, id string) ([]*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.ChatMessage(nil), f.messages[id]...), nil
}

func (f *fakeTickets) ListenMessages(ctx context.Context, id string, fn func([]*models.ChatMessage)) error {
	msgs, _ := f.ListMessages(ctx, id)
	fn(msgs)
	<-ctx.Done()
	return nil
}

func (f *fakeTickets) all() []*models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.tickets {
		c := *t
		out = append(out, &c)
	}
	return out
}

type fakeCheckouts struct {
	mu        sync.Mutex
	checkouts map[string]*models.Checkout
	// beginErrs are returned by the next BeginFulfillment calls, in order.
	beginErrs []error
	onBegin   func()
}

func newFakeCheckouts() *fakeCheckouts {
	return &fakeCheckouts{checkouts: map[string]*models.Checkout{}}
}

func (f *fakeCheckouts) Create(_ context.Context, c *models.Checkout) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.checkouts[c.ID] = &cp
	return c.ID, nil
}

func (f *fakeCheckouts) GetByID(_ context.Context, id string) (*models.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.checkouts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCheckouts) BeginFulfillment(ctx context.Context, id string, now time.Time) (*models.Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.beginErrs) > 0 {
		err := f.beginErrs[0]
		f.beginErrs = f.beginErrs[1:]
		return nil, err
	}
	if f.onBegin != nil {
		defer f.onBegin()
	}
	c, ok := f.checkouts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if c.Status != models.CheckoutPending {
		return nil, db.ErrConflict
	}
	c.Status = models.CheckoutFulfilling
	c.UpdatedAt = now
	cp := *c
	return &cp, nil
}

func (f *fakeCheckouts) Complete(ctx context.Context, id, ticketID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.checkouts[id]
	c.Status = models.CheckoutFulfilled
	c.TicketID = ticketID
	c.UpdatedAt = now
	return nil
}

func (f *fakeCheckouts) Fail(ctx context.Context, id, reason string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.checkouts[id]
	c.Status = models.CheckoutFailed
	c.Error = reason
	c.UpdatedAt = now
	return nil
}

type fakeConfigs struct {
	payment  models.PaymentConfig
	whatsapp models.WhatsappConfig
	special  models.SpecialCouponsConfig
	puts     map[string]interface{}
}

func (f *fakeConfigs) Payment(context.Context) (*models.PaymentConfig, error) {
	c := f.payment
	return &c, nil
}

func (f *fakeConfigs) Whatsapp(context.Context) (*models.WhatsappConfig, error) {
	c := f.whatsapp
	return &c, nil
}

func (f *fakeConfigs) SpecialCoupons(context.Context) (*models.SpecialCouponsConfig, error) {
	c := f.special
	return &c, nil
}

func (f *fakeConfigs) Put(_ context.Context, docID string, value interface{}) error {
	if f.puts == nil {
		f.puts = map[string]interface{}{}
	}
	f.puts[docID] = value
	switch v := value.(type) {
	case models.PaymentConfig:
		f.payment = v
	case models.WhatsappConfig:
		f.whatsapp = v
	case models.SpecialCouponsConfig:
		f.special = v
	}
	return nil
}

func (f *fakeConfigs) ListenWhatsapp(ctx context.Context, fn func(*models.WhatsappConfig)) error {
	c := f.whatsapp
	fn(&c)
	<-ctx.Done()
	return nil
}

type sentNotification struct {
	Type  models.NotificationType
	Phone string
	Data  map[string]string
}

type fakeNotifications struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifications) Enqueue(_ context.Context, t models.NotificationType, phone string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Type: t, Phone: phone, Data: data})
	return nil
}

func (f *fakeNotifications) ofType(t models.NotificationType) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fakePix struct {
	mu      sync.Mutex
	charges []int64
	tokens  []string
	status  string
	err     error
}

func (f *fakePix) CreateCharge(_ context.Context, token string, cents int64) (*pix.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.charges = append(f.charges, cents)
	f.tokens = append(f.tokens, token)
	return &pix.Charge{
		ID:     fmt.Sprintf("tx-%d", len(f.charges)),
		QRCode: "000201-pix",
		Status: pix.StatusCreated,
		Value:  cents,
	}, nil
}

func (f *fakePix) GetStatus(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

// plainSealer marks values without encrypting them.
type plainSealer struct{}

func (plainSealer) Seal(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	return "sealed:" + v, nil
}

func (plainSealer) Open(v string) (string, error) {
	if len(v) > 7 && v[:7] == "sealed:" {
		return v[7:], nil
	}
	return v, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (f *fakeLocker) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeLocker) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeLocker) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key]
}

type fakeAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeAlerter) Alert(_ context.Context, subject, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
}
