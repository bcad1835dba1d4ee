package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/example/subsmarket/internal/models"
)

// emulatorClient returns a Firestore client bound to FIRESTORE_EMULATOR_HOST or
// skips the test.
func emulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set, skip emulator integration test")
	}
	client, err := firestore.NewClient(context.Background(), "test-project")
	if err != nil {
		t.Fatalf("failed to create firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDeliverableClaimWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	plans := NewFirestorePlanRepository(client)
	deliverables := NewFirestoreDeliverableRepository(client)

	planID, err := plans.Create(ctx, &models.Plan{ServiceID: "svc-" + uuid.NewString(), Name: "Premium", Price: 30, AccountModel: models.AccountModelFullAccess, UserLimit: 1})
	if err != nil {
		t.Fatalf("Create plan: %v", err)
	}

	const n = 3
	now := time.Now().UTC()
	if _, err := deliverables.Add(ctx, planID, []string{"a", "b", "c"}, now); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var mu sync.Mutex
	claimed := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			d, err := deliverables.ClaimOldestAvailable(ctx, planID, buyer, time.Now().UTC())
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if claimed[d.ID] {
				t.Errorf("deliverable %s claimed twice", d.ID)
			}
			claimed[d.ID] = true
		}(uuid.NewString())
	}
	wg.Wait()

	if _, err := deliverables.ClaimOldestAvailable(ctx, planID, "late-buyer", now); !errors.Is(err, ErrNoStock) {
		t.Fatalf("claim after %d sales: err = %v, want ErrNoStock", n, err)
	}
	plan, err := plans.GetByID(ctx, planID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if plan.Stock != 0 {
		t.Fatalf("stock = %d, want 0", plan.Stock)
	}
}

func TestTicketCountersWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	tickets := NewFirestoreTicketRepository(client)
	now := time.Now().UTC()

	id, err := tickets.Create(ctx, &models.Ticket{
		CustomerID: "cust-" + uuid.NewString(), SellerID: "sell-" + uuid.NewString(),
		Status: models.TicketStatusOpen, UnreadBySellerCount: 1, CreatedAt: now,
	}, &models.ChatMessage{SenderID: "system", Text: "seed", Timestamp: now, Type: models.MessageSystem})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	msg := &models.ChatMessage{SenderID: "x", Text: "hi", Timestamp: now.Add(time.Second), Type: models.MessageText}
	if _, err := tickets.AddMessage(ctx, id, msg, models.CounterDelta{CustomerIncrement: 1, ResetSeller: true}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	got, _ := tickets.GetByID(ctx, id)
	if got.UnreadBySellerCount != 0 || got.UnreadByCustomerCount != 1 || got.LastMessage != "hi" {
		t.Fatalf("unexpected ticket state: %+v", got)
	}

	if err := tickets.ResetUnread(ctx, id, false); err != nil {
		t.Fatalf("ResetUnread: %v", err)
	}
	got, _ = tickets.GetByID(ctx, id)
	if got.UnreadByCustomerCount != 0 {
		t.Fatalf("customer counter = %d after reset", got.UnreadByCustomerCount)
	}

	msgs, err := tickets.ListMessages(ctx, id)
	if err != nil || len(msgs) != 2 || msgs[0].Text != "seed" {
		t.Fatalf("ListMessages = %v, %v", msgs, err)
	}
}

func TestNotificationClaimLeaseWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	queue := NewFirestoreNotificationRepository(client)
	now := time.Now().UTC()

	id, err := queue.Enqueue(ctx, &models.PendingWhatsappMessage{Type: models.NotificationWelcome, To: "5511999999999", CreatedAt: now, NextAttemptAt: now})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	t.Cleanup(func() { _ = queue.Delete(context.Background(), id) })

	if _, ok, err := queue.Claim(ctx, id, "worker-a", now, time.Minute); err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	if _, ok, _ := queue.Claim(ctx, id, "worker-b", now.Add(30*time.Second), time.Minute); ok {
		t.Fatal("second worker claimed an entry under a live lease")
	}
	if _, ok, _ := queue.Claim(ctx, id, "worker-b", now.Add(2*time.Minute), time.Minute); !ok {
		t.Fatal("expired lease should be claimable")
	}
}

func TestCheckoutGuardWithEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	checkouts := NewFirestoreCheckoutRepository(client)
	now := time.Now().UTC()

	id, err := checkouts.Create(ctx, &models.Checkout{ID: "tx-" + uuid.NewString(), Status: models.CheckoutPending, CreatedAt: now})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := checkouts.BeginFulfillment(ctx, id, now); err != nil {
		t.Fatalf("first BeginFulfillment: %v", err)
	}
	if _, err := checkouts.BeginFulfillment(ctx, id, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("second BeginFulfillment err = %v, want ErrConflict", err)
	}
	if err := checkouts.Complete(ctx, id, "ticket-1", now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ := checkouts.GetByID(ctx, id)
	if got.Status != models.CheckoutFulfilled || got.TicketID != "ticket-1" {
		t.Fatalf("unexpected checkout: %+v", got)
	}
}
