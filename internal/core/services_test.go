package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/gateway/gemini"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/pkg/mailer"
)

func TestRenderTemplate(t *testing.T) {
	data := map[string]string{"cliente": "Ana", "produto": "StreamFlix - Premium"}
	got := RenderTemplate("Olá {cliente}, seu {produto} chegou! {desconhecido}", data)
	want := "Olá Ana, seu StreamFlix - Premium chegou! {desconhecido}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := RenderTemplate("", data); got != "" {
		t.Fatalf("empty template rendered %q", got)
	}
}

type queueRecorder struct {
	mu   sync.Mutex
	msgs []*models.PendingWhatsappMessage
}

func (q *queueRecorder) Enqueue(_ context.Context, msg *models.PendingWhatsappMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return "n1", nil
}

func (q *queueRecorder) Listen(context.Context, func(*models.PendingWhatsappMessage)) error {
	return nil
}

func (q *queueRecorder) ListDue(context.Context, time.Time, int) ([]*models.PendingWhatsappMessage, error) {
	return nil, nil
}

func (q *queueRecorder) Claim(context.Context, string, string, time.Time, time.Duration) (*models.PendingWhatsappMessage, bool, error) {
	return nil, false, nil
}

func (q *queueRecorder) Reschedule(context.Context, string, int, time.Time, string) error { return nil }

func (q *queueRecorder) Delete(context.Context, string) error { return nil }

func TestNotificationEnqueue(t *testing.T) {
	queue := &queueRecorder{}
	svc := NewNotificationService(queue, zap.NewNop())
	ctx := context.Background()

	if err := svc.Enqueue(ctx, models.NotificationWelcome, "+55 (11) 99999-0000", map[string]string{"cliente": "Ana"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Enqueue(ctx, models.NotificationWelcome, "", nil); err != nil {
		t.Fatal(err)
	}
	if len(queue.msgs) != 1 {
		t.Fatalf("queued = %d, want 1", len(queue.msgs))
	}
	msg := queue.msgs[0]
	if msg.To != "5511999990000" || msg.Attempts != 0 || msg.NextAttemptAt.IsZero() {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestUserInitialize(t *testing.T) {
	users := newFakeUsers()
	notes := &fakeNotifications{}
	svc := NewUserService(users, notes, plainSealer{}, zap.NewNop())
	ctx := context.Background()

	user, created, err := svc.Initialize(ctx, Identity{UserID: "u1", Email: "ana@example.com", PhoneNumber: "11999990000"})
	if err != nil || !created {
		t.Fatalf("Initialize = %v, %v", created, err)
	}
	if user.Role != models.RoleCustomer || user.DisplayName != "ana" {
		t.Fatalf("user = %+v", user)
	}
	if w := notes.ofType(models.NotificationWelcome); len(w) != 1 || w[0].Data["cliente"] != "ana" {
		t.Fatalf("welcome = %+v", w)
	}

	_, created, err = svc.Initialize(ctx, Identity{UserID: "u1", Email: "ana@example.com"})
	if err != nil || created {
		t.Fatalf("second Initialize = %v, %v", created, err)
	}
	if len(notes.sent) != 1 {
		t.Fatal("welcome must be sent once")
	}
}

func TestUpdateProfile(t *testing.T) {
	users := newFakeUsers(&models.User{ID: "u1", DisplayName: "Ana"})
	svc := NewUserService(users, &fakeNotifications{}, plainSealer{}, zap.NewNop())
	ctx := context.Background()
	str := func(s string) *string { return &s }

	u, err := svc.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{
		DisplayName:      str(" Ana Paula "),
		PhoneNumber:      str("(11) 98888-7777"),
		WhatsappAPIToken: str("tok"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.DisplayName != "Ana Paula" || u.PhoneNumber != "11988887777" || u.WhatsappAPIToken != "sealed:tok" {
		t.Fatalf("user = %+v", u)
	}

	if _, err := svc.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{DisplayName: str(" ")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name err = %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{PhoneNumber: str("123")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("short phone err = %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "ghost", models.UpdateProfileRequest{DisplayName: str("x")}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestHeartbeatAndPresence(t *testing.T) {
	users := newFakeUsers(&models.User{ID: "u1"})
	svc := NewUserService(users, &fakeNotifications{}, plainSealer{}, zap.NewNop()).(*userService)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	p, err := svc.Presence(ctx, "u1")
	if err != nil || p.Online {
		t.Fatalf("before heartbeat = %+v, %v", p, err)
	}
	if err := svc.Heartbeat(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if p, _ := svc.Presence(ctx, "u1"); !p.Online {
		t.Fatalf("after heartbeat = %+v", p)
	}
	now = now.Add(10 * time.Minute)
	if p, _ := svc.Presence(ctx, "u1"); p.Online || p.Label != "visto há 12 minutos" {
		t.Fatalf("later = %+v", p)
	}
}

func TestWhatsappToken(t *testing.T) {
	ctx := context.Background()
	configs := &fakeConfigs{}

	if _, err := WhatsappToken(ctx, configs, plainSealer{}, &models.User{ID: "a"}); !errors.Is(err, ErrWhatsappNotConfigured) {
		t.Fatalf("unconfigured err = %v", err)
	}
	configs.whatsapp.APIToken = "sealed:shared"
	if tok, _ := WhatsappToken(ctx, configs, plainSealer{}, &models.User{ID: "a"}); tok != "shared" {
		t.Fatalf("shared token = %q", tok)
	}
	if tok, _ := WhatsappToken(ctx, configs, plainSealer{}, &models.User{ID: "a", WhatsappAPIToken: "sealed:own"}); tok != "own" {
		t.Fatalf("own token = %q", tok)
	}
}

type fakeWhatsappGateway struct {
	mu       sync.Mutex
	statuses []string
	calls    int
}

func (f *fakeWhatsappGateway) InstanceStatus(context.Context, string) (*whatsapp.InstanceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.statuses[len(f.statuses)-1]
	if f.calls < len(f.statuses) {
		st = f.statuses[f.calls]
	}
	f.calls++
	if st == "error" {
		return nil, whatsapp.ErrGateway
	}
	return &whatsapp.InstanceStatus{Status: st}, nil
}

func (f *fakeWhatsappGateway) Connect(context.Context, string) (string, error) {
	return "data:image/png;base64,qr", nil
}

func (f *fakeWhatsappGateway) SendMessage(context.Context, string, string, string) error { return nil }

func TestAwaitConnection(t *testing.T) {
	configs := &fakeConfigs{whatsapp: models.WhatsappConfig{APIToken: "sealed:t"}}
	admin := &models.User{ID: "root", Role: models.RoleAdmin}
	ctx := context.Background()

	gw := &fakeWhatsappGateway{statuses: []string{"connecting", "error", "connected"}}
	svc := NewWhatsappService(gw, configs, plainSealer{}, time.Second, zap.NewNop()).(*whatsappService)
	svc.pollInterval = time.Millisecond
	st, err := svc.AwaitConnection(ctx, admin)
	if err != nil || !st.Connected() {
		t.Fatalf("AwaitConnection = %+v, %v", st, err)
	}

	never := &fakeWhatsappGateway{statuses: []string{"disconnected"}}
	svc = NewWhatsappService(never, configs, plainSealer{}, 20*time.Millisecond, zap.NewNop()).(*whatsappService)
	svc.pollInterval = time.Millisecond
	if _, err := svc.AwaitConnection(ctx, admin); !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("timeout err = %v", err)
	}

	qr, err := svc.Connect(ctx, admin)
	if err != nil || !strings.HasPrefix(qr, "data:image") {
		t.Fatalf("Connect = %q, %v", qr, err)
	}
}

type fakeGenerator struct {
	prompt string
	err    error
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string, _ *gemini.Schema, out interface{}) error {
	f.prompt = prompt
	if f.err != nil {
		return f.err
	}
	resp := out.(*models.RecommendationResponse)
	resp.Recommendations = []models.Recommendation{{SubscriptionName: "StreamFlix", PlanDetails: "Premium", Reason: "filmes"}}
	return nil
}

func TestRecommend(t *testing.T) {
	services := &fakeServices{services: map[string]*models.SubscriptionService{
		"a": {ID: "a", Name: "StreamFlix"},
		"b": {ID: "b", Name: "MusicBox"},
	}}
	gen := &fakeGenerator{}
	svc := NewRecommendationService(gen, services, zap.NewNop())

	resp, err := svc.Recommend(context.Background(), models.RecommendationRequest{ViewingHistory: []string{"StreamFlix"}, Preferences: "filmes"})
	if err != nil || len(resp.Recommendations) != 1 {
		t.Fatalf("Recommend = %+v, %v", resp, err)
	}
	if !strings.Contains(gen.prompt, "MusicBox, StreamFlix") || !strings.Contains(gen.prompt, "filmes") {
		t.Fatalf("prompt = %q", gen.prompt)
	}

	gen.err = gemini.ErrNotConfigured
	if _, err := svc.Recommend(context.Background(), models.RecommendationRequest{}); !errors.Is(err, ErrRecommendationNotConfigured) {
		t.Fatalf("unconfigured err = %v", err)
	}
	gen.err = errors.New("boom")
	if _, err := svc.Recommend(context.Background(), models.RecommendationRequest{}); !errors.Is(err, ErrRecommendation) {
		t.Fatalf("upstream err = %v", err)
	}
}

type mailRecorder struct {
	subjects []string
	err      error
}

func (m *mailRecorder) Send(_, subject, _ string) error {
	m.subjects = append(m.subjects, subject)
	return m.err
}

func TestMailAlerter(t *testing.T) {
	mail := &mailRecorder{}
	NewMailAlerter(mail, "ops@example.com", zap.NewNop()).Alert(context.Background(), "Pedido pago sem entrega", "corpo")
	if len(mail.subjects) != 1 || mail.subjects[0] != "[subsmarket] Pedido pago sem entrega" {
		t.Fatalf("subjects = %v", mail.subjects)
	}

	mail = &mailRecorder{err: mailer.ErrNotConfigured}
	NewMailAlerter(mail, "ops@example.com", zap.NewNop()).Alert(context.Background(), "x", "y")
	NewMailAlerter(mail, "", zap.NewNop()).Alert(context.Background(), "x", "y")
	if len(mail.subjects) != 1 {
		t.Fatalf("subjects = %v", mail.subjects)
	}
}
