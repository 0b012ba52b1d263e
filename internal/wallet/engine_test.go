package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/giridharan-7/my-paytm/internal/events"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/storage/memory"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store *memory.LedgerStore
	users *memory.UserStore
	svc   *wallet.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewLedgerStore()
	users := memory.NewUserStore()
	svc := wallet.NewService(store, users, events.NopPublisher{}, wallet.Config{
		Ceiling:        d("1000000"),
		InitialBalance: d("1000"),
	}, zap.NewNop())
	return &fixture{store: store, users: users, svc: svc}
}

func (f *fixture) account(t *testing.T, id string, balance string) {
	t.Helper()
	if err := f.store.CreateAccount(context.Background(), id, d(balance)); err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	bal, err := f.svc.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance %s: %v", id, err)
	}
	return bal
}

func (f *fixture) recordCount(t *testing.T, id string) int {
	t.Helper()
	_, total, err := f.svc.Statement(context.Background(), id, 1, 10)
	if err != nil {
		t.Fatalf("statement %s: %v", id, err)
	}
	return total
}

func TestTransferMovesFunds(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "500")

	res, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
		FromAccountID: "alice",
		ToAccountID:   "bob",
		Amount:        d("300"),
		Description:   "rent",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := f.balance(t, "alice"); !got.Equal(d("700")) {
		t.Fatalf("alice balance=%s want=700", got)
	}
	if got := f.balance(t, "bob"); !got.Equal(d("800")) {
		t.Fatalf("bob balance=%s want=800", got)
	}

	rec := res.Record
	if rec.ID == "" {
		t.Fatal("record id should be set")
	}
	if rec.Status != models.StatusCompleted {
		t.Fatalf("status=%s want=completed", rec.Status)
	}
	if !rec.Amount.Equal(d("300")) || rec.FromAccountID != "alice" || rec.ToAccountID != "bob" {
		t.Fatalf("record unexpected: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("created_at should be set")
	}
	if got := f.recordCount(t, "alice"); got != 1 {
		t.Fatalf("alice records=%d want=1", got)
	}
}

func TestTransferConservation(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "123.45")
	f.account(t, "bob", "0.55")
	before := f.balance(t, "alice").Add(f.balance(t, "bob"))

	for _, amt := range []string{"0.01", "10.99", "100"} {
		_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
			FromAccountID: "alice", ToAccountID: "bob", Amount: d(amt),
		})
		if err != nil {
			t.Fatalf("transfer %s: %v", amt, err)
		}
	}

	after := f.balance(t, "alice").Add(f.balance(t, "bob"))
	if !after.Equal(before) {
		t.Fatalf("total changed: before=%s after=%s", before, after)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "100")
	f.account(t, "bob", "0")

	_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
		FromAccountID: "alice", ToAccountID: "bob", Amount: d("150"),
	})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	// Atomicity: neither balance changed, no record written.
	if got := f.balance(t, "alice"); !got.Equal(d("100")) {
		t.Fatalf("alice balance=%s want=100", got)
	}
	if got := f.balance(t, "bob"); !got.Equal(d("0")) {
		t.Fatalf("bob balance=%s want=0", got)
	}
	if got := f.recordCount(t, "alice"); got != 0 {
		t.Fatalf("records=%d want=0", got)
	}
}

func TestTransferSelf(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "100")

	_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
		FromAccountID: "alice", ToAccountID: "alice", Amount: d("10"),
	})
	if !errors.Is(err, wallet.ErrSelfTransfer) {
		t.Fatalf("want ErrSelfTransfer, got %v", err)
	}
	if got := f.recordCount(t, "alice"); got != 0 {
		t.Fatalf("records=%d want=0", got)
	}
}

func TestTransferUnknownAccount(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "100")

	for _, req := range []wallet.TransferRequest{
		{FromAccountID: "alice", ToAccountID: "ghost", Amount: d("10")},
		{FromAccountID: "ghost", ToAccountID: "alice", Amount: d("10")},
	} {
		_, err := f.svc.Transfer(context.Background(), req)
		if !errors.Is(err, wallet.ErrAccountNotFound) {
			t.Fatalf("req=%+v want ErrAccountNotFound, got %v", req, err)
		}
	}
	if got := f.balance(t, "alice"); !got.Equal(d("100")) {
		t.Fatalf("alice balance=%s want=100", got)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "100")
	f.account(t, "bob", "100")

	cases := []struct {
		name string
		req  wallet.TransferRequest
	}{
		{"zero amount", wallet.TransferRequest{FromAccountID: "alice", ToAccountID: "bob", Amount: d("0")}},
		{"negative amount", wallet.TransferRequest{FromAccountID: "alice", ToAccountID: "bob", Amount: d("-5")}},
		{"above ceiling", wallet.TransferRequest{FromAccountID: "alice", ToAccountID: "bob", Amount: d("1000001")}},
		{"missing sender", wallet.TransferRequest{ToAccountID: "bob", Amount: d("5")}},
		{"long description", wallet.TransferRequest{
			FromAccountID: "alice", ToAccountID: "bob", Amount: d("5"),
			Description: strings.Repeat("x", 256),
		}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Transfer(context.Background(), tc.req); !errors.Is(err, wallet.ErrInvalidRequest) {
			t.Fatalf("%s: want ErrInvalidRequest, got %v", tc.name, err)
		}
	}
	if got := f.balance(t, "alice"); !got.Equal(d("100")) {
		t.Fatalf("alice balance=%s want=100", got)
	}
	if got := f.recordCount(t, "alice"); got != 0 {
		t.Fatalf("records=%d want=0", got)
	}
}

// TestConcurrentDebitsSerialize drains an account of 50 from 100 parallel
// transfers of 1: exactly 50 must succeed, the rest must fail with
// insufficient funds, and the balance must land on exactly zero.
func TestConcurrentDebitsSerialize(t *testing.T) {
	f := newFixture(t)
	f.account(t, "hub", "50")
	const n = 100
	for i := 0; i < n; i++ {
		f.account(t, fmt.Sprintf("r%03d", i), "0")
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
				FromAccountID: "hub",
				ToAccountID:   fmt.Sprintf("r%03d", i),
				Amount:        d("1"),
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, wallet.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 50 || insufficient != 50 {
		t.Fatalf("ok=%d insufficient=%d want 50/50", ok, insufficient)
	}
	if got := f.balance(t, "hub"); !got.Equal(d("0")) {
		t.Fatalf("hub balance=%s want=0", got)
	}

	// Conservation plus audit completeness across the whole run.
	credited := decimal.Zero
	records := 0
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r%03d", i)
		credited = credited.Add(f.balance(t, id))
		records += f.recordCount(t, id)
	}
	if !credited.Equal(d("50")) {
		t.Fatalf("credited total=%s want=50", credited)
	}
	if records != 50 {
		t.Fatalf("records=%d want=50", records)
	}
}

// TestConcurrentPairExactlyOneWins: two transfers of 600 from a balance of
// 1000 cannot both commit.
func TestConcurrentPairExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "0")
	f.account(t, "carol", "0")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
				FromAccountID: "alice", ToAccountID: to, Amount: d("600"),
			})
			errs[i] = err
		}(i, to)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, wallet.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("ok=%d insufficient=%d want 1/1", ok, insufficient)
	}
	if got := f.balance(t, "alice"); !got.Equal(d("400")) {
		t.Fatalf("alice balance=%s want=400", got)
	}
}

// TestConcurrentOpposedTransfers runs transfers between the same pair in
// both directions; sorted lock acquisition must neither deadlock nor lose
// an update.
func TestConcurrentOpposedTransfers(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "1000")

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
				FromAccountID: "alice", ToAccountID: "bob", Amount: d("1"),
			}); err != nil {
				t.Errorf("alice->bob: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
				FromAccountID: "bob", ToAccountID: "alice", Amount: d("1"),
			}); err != nil {
				t.Errorf("bob->alice: %v", err)
			}
		}()
	}
	wg.Wait()

	a, b := f.balance(t, "alice"), f.balance(t, "bob")
	if a.IsNegative() || b.IsNegative() {
		t.Fatalf("negative balance: alice=%s bob=%s", a, b)
	}
	if total := a.Add(b); !total.Equal(d("2000")) {
		t.Fatalf("total=%s want=2000", total)
	}
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "0")

	req := wallet.TransferRequest{
		FromAccountID:  "alice",
		ToAccountID:    "bob",
		Amount:         d("100"),
		IdempotencyKey: "retry-abc",
	}

	first, err := f.svc.Transfer(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Replayed {
		t.Fatal("first attempt should not be a replay")
	}

	second, err := f.svc.Transfer(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Replayed {
		t.Fatal("second attempt should be a replay")
	}
	if second.Record.ID != first.Record.ID {
		t.Fatalf("replay returned a different record: %s vs %s", second.Record.ID, first.Record.ID)
	}

	// Applied exactly once.
	if got := f.balance(t, "alice"); !got.Equal(d("900")) {
		t.Fatalf("alice balance=%s want=900", got)
	}
	if got := f.recordCount(t, "bob"); got != 1 {
		t.Fatalf("records=%d want=1", got)
	}
}

func TestConcurrentSameIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "0")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
				FromAccountID:  "alice",
				ToAccountID:    "bob",
				Amount:         d("100"),
				IdempotencyKey: "dup-key",
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if got := f.balance(t, "bob"); !got.Equal(d("100")) {
		t.Fatalf("bob balance=%s want=100 (applied more than once?)", got)
	}
}

func TestBalanceIdempotentRead(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "42.42")
	first := f.balance(t, "alice")
	second := f.balance(t, "alice")
	if !first.Equal(second) {
		t.Fatalf("reads differ: %s vs %s", first, second)
	}
}

func TestStatementPagination(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "1000")
	f.account(t, "bob", "0")

	var ids []string
	for i := 0; i < 5; i++ {
		res, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
			FromAccountID: "alice", ToAccountID: "bob", Amount: d("1"),
			Description: fmt.Sprintf("payment %d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.Record.ID)
	}

	page1, total, err := f.svc.Statement(context.Background(), "alice", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Fatalf("total=%d want=5", total)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 len=%d want=2", len(page1))
	}
	// Newest first.
	if page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Fatalf("page1 order unexpected: %s %s", page1[0].ID, page1[1].ID)
	}

	page3, _, err := f.svc.Statement(context.Background(), "alice", 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3) != 1 || page3[0].ID != ids[0] {
		t.Fatalf("page3 unexpected: %+v", page3)
	}

	empty, total, err := f.svc.Statement(context.Background(), "alice", 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 || total != 5 {
		t.Fatalf("past-the-end page: len=%d total=%d", len(empty), total)
	}

	if _, _, err := f.svc.Statement(context.Background(), "ghost", 1, 2); !errors.Is(err, wallet.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)

	acc, err := f.svc.OpenAccount(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Balance.Equal(d("1000")) {
		t.Fatalf("seeded balance=%s want=1000", acc.Balance)
	}
	if got := f.balance(t, "alice"); !got.Equal(d("1000")) {
		t.Fatalf("stored balance=%s want=1000", got)
	}

	if _, err := f.svc.OpenAccount(context.Background(), "alice"); !errors.Is(err, wallet.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	if _, err := f.svc.OpenAccount(context.Background(), ""); !errors.Is(err, wallet.ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestTransferPublishesEvent(t *testing.T) {
	store := memory.NewLedgerStore()
	users := memory.NewUserStore()
	pub := &capturingPublisher{}
	svc := wallet.NewService(store, users, pub, wallet.Config{
		Ceiling:        d("1000000"),
		InitialBalance: d("1000"),
	}, zap.NewNop())

	ctx := context.Background()
	if err := store.CreateAccount(ctx, "alice", d("100")); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateAccount(ctx, "bob", d("0")); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Transfer(ctx, wallet.TransferRequest{
		FromAccountID: "alice", ToAccountID: "bob", Amount: d("10"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transfer(ctx, wallet.TransferRequest{
		FromAccountID: "alice", ToAccountID: "bob", Amount: d("9999"),
	}); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.topics) != 1 || pub.topics[0] != wallet.TopicTransferCompleted {
		t.Fatalf("published topics=%v want exactly one %q", pub.topics, wallet.TopicTransferCompleted)
	}
}

func TestRecipientName(t *testing.T) {
	f := newFixture(t)
	f.account(t, "alice", "100")

	bob := models.User{ID: "bob", Email: "bob@test.com", FirstName: "Bob", LastName: "Stone", CreatedAt: time.Now()}
	if err := f.users.CreateUser(context.Background(), bob); err != nil {
		t.Fatal(err)
	}
	f.account(t, "bob", "0")

	res, err := f.svc.Transfer(context.Background(), wallet.TransferRequest{
		FromAccountID: "alice", ToAccountID: "bob", Amount: d("10"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RecipientName != "Bob Stone" {
		t.Fatalf("recipient name=%q want=%q", res.RecipientName, "Bob Stone")
	}
}
