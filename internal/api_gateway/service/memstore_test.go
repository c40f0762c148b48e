package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/domain/outbox"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// memStore is an in-memory stand-in for the Postgres schema. A transaction
// holds the store mutex from begin to commit, which is at least as strict as
// the row locks the real repositories take, and rolls back on error.
type memStore struct {
	mu           sync.Mutex
	orders       map[string]order.Order
	accounts     map[uuid.UUID]ledger.Account
	transactions []ledger.Transaction
	outbox       []outbox.Message
	nextOutboxID int64
}

type memTx struct {
	pgx.Tx
}

type memSnapshot struct {
	orders       map[string]order.Order
	accounts     map[uuid.UUID]ledger.Account
	transactions []ledger.Transaction
	outbox       []outbox.Message
	nextOutboxID int64
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]order.Order),
		accounts: make(map[uuid.UUID]ledger.Account),
	}
}

func (s *memStore) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memTx{}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		orders:       make(map[string]order.Order, len(s.orders)),
		accounts:     make(map[uuid.UUID]ledger.Account, len(s.accounts)),
		transactions: append([]ledger.Transaction(nil), s.transactions...),
		outbox:       append([]outbox.Message(nil), s.outbox...),
		nextOutboxID: s.nextOutboxID,
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.orders = snap.orders
	s.accounts = snap.accounts
	s.transactions = snap.transactions
	s.outbox = snap.outbox
	s.nextOutboxID = snap.nextOutboxID
}

// locked runs fn under the store mutex unless the caller already holds it
func (s *memStore) locked(inTx bool, fn func()) {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

// Inspection helpers for assertions; never call them inside a transaction.

func (s *memStore) order(outTradeNo string) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[outTradeNo]
	return o, ok
}

func (s *memStore) account(userID uuid.UUID) (ledger.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	return a, ok
}

func (s *memStore) transactionsOf(userID uuid.UUID, txType ledger.TransactionType) []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && (txType == "" || t.Type == txType) {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) outboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// setOrderStatus forces a status, e.g. to simulate the expiry sweeper
func (s *memStore) setOrderStatus(outTradeNo string, status order.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[outTradeNo]
	o.Status = status
	s.orders[outTradeNo] = o
}

type memOrderRepo struct {
	store *memStore
	inTx  bool
}

func (r *memOrderRepo) WithTx(tx pgx.Tx) order.Repository {
	return &memOrderRepo{store: r.store, inTx: tx != nil}
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) (err error) {
	r.store.locked(r.inTx, func() {
		if _, exists := r.store.orders[o.OutTradeNo]; exists {
			err = order.ErrDuplicateOrder{OutTradeNo: o.OutTradeNo}
			return
		}
		r.store.orders[o.OutTradeNo] = *o
	})
	return err
}

func (r *memOrderRepo) GetByOutTradeNo(_ context.Context, outTradeNo string) (o *order.Order, err error) {
	r.store.locked(r.inTx, func() {
		stored, ok := r.store.orders[outTradeNo]
		if !ok {
			err = order.ErrOrderNotFound{OutTradeNo: outTradeNo}
			return
		}
		o = &stored
	})
	return o, err
}

func (r *memOrderRepo) LockForUpdate(ctx context.Context, outTradeNo string) (*order.Order, error) {
	return r.GetByOutTradeNo(ctx, outTradeNo)
}

func (r *memOrderRepo) MarkPaid(_ context.Context, o *order.Order) (err error) {
	r.store.locked(r.inTx, func() {
		stored, ok := r.store.orders[o.OutTradeNo]
		if !ok {
			err = order.ErrOrderNotFound{OutTradeNo: o.OutTradeNo}
			return
		}
		if stored.Status != order.StatusPending && stored.Status != order.StatusExpired {
			err = order.ErrInvalidTransition{OutTradeNo: o.OutTradeNo, From: stored.Status, To: order.StatusPaid}
			return
		}
		r.store.orders[o.OutTradeNo] = *o
	})
	return err
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) (out []*order.Order, err error) {
	r.store.locked(r.inTx, func() {
		for _, o := range r.store.orders {
			if o.UserID == userID {
				o := o
				out = append(out, &o)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrderRepo) ExpirePending(_ context.Context, olderThan, now time.Time) (n int64, err error) {
	r.store.locked(r.inTx, func() {
		for k, o := range r.store.orders {
			if o.Status == order.StatusPending && o.CreatedAt.Before(olderThan) {
				o.Status = order.StatusExpired
				o.UpdatedAt = now
				r.store.orders[k] = o
				n++
			}
		}
	})
	return n, nil
}

type memLedgerRepo struct {
	store *memStore
	inTx  bool
}

func (r *memLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	return &memLedgerRepo{store: r.store, inTx: tx != nil}
}

func (r *memLedgerRepo) EnsureAccount(_ context.Context, userID uuid.UUID, now time.Time) (created bool, err error) {
	r.store.locked(r.inTx, func() {
		if _, ok := r.store.accounts[userID]; ok {
			return
		}
		r.store.accounts[userID] = ledger.Account{UserID: userID, CreatedAt: now, UpdatedAt: now}
		created = true
	})
	return created, nil
}

func (r *memLedgerRepo) GetAccount(_ context.Context, userID uuid.UUID) (acc *ledger.Account, err error) {
	r.store.locked(r.inTx, func() {
		stored, ok := r.store.accounts[userID]
		if !ok {
			err = ledger.ErrAccountNotFound{UserID: userID}
			return
		}
		acc = &stored
	})
	return acc, err
}

func (r *memLedgerRepo) LockAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	return r.GetAccount(ctx, userID)
}

func (r *memLedgerRepo) SaveAccount(_ context.Context, acc *ledger.Account) (err error) {
	r.store.locked(r.inTx, func() {
		stored, ok := r.store.accounts[acc.UserID]
		if !ok {
			err = ledger.ErrAccountNotFound{UserID: acc.UserID}
			return
		}
		stored.Balance = acc.Balance
		stored.TotalRecharge = acc.TotalRecharge
		stored.UpdatedAt = acc.UpdatedAt
		r.store.accounts[acc.UserID] = stored
	})
	return err
}

func (r *memLedgerRepo) AppendTransaction(_ context.Context, txn *ledger.Transaction) (err error) {
	r.store.locked(r.inTx, func() {
		if txn.Type == ledger.TypeRecharge && txn.ReferenceID != nil {
			for _, existing := range r.store.transactions {
				if existing.Type == ledger.TypeRecharge && existing.ReferenceID != nil && *existing.ReferenceID == *txn.ReferenceID {
					err = ledger.ErrDuplicateRecharge{ReferenceID: *txn.ReferenceID}
					return
				}
			}
		}
		r.store.transactions = append(r.store.transactions, *txn)
	})
	return err
}

func (r *memLedgerRepo) MarkBonusClaimed(_ context.Context, userID uuid.UUID, day, now time.Time) (claimed bool, err error) {
	r.store.locked(r.inTx, func() {
		stored, ok := r.store.accounts[userID]
		if !ok {
			return
		}
		if stored.LastBonusDate != nil && !stored.LastBonusDate.Before(day) {
			return
		}
		d := day
		stored.LastBonusDate = &d
		stored.UpdatedAt = now
		r.store.accounts[userID] = stored
		claimed = true
	})
	return claimed, nil
}

type memOutboxRepo struct {
	store *memStore
	inTx  bool
}

func (r *memOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return &memOutboxRepo{store: r.store, inTx: tx != nil}
}

func (r *memOutboxRepo) Create(_ context.Context, msg *outbox.Message) error {
	r.store.locked(r.inTx, func() {
		r.store.nextOutboxID++
		msg.ID = r.store.nextOutboxID
		r.store.outbox = append(r.store.outbox, *msg)
	})
	return nil
}

func (r *memOutboxRepo) GetPending(_ context.Context, limit int) (out []*outbox.Message, err error) {
	r.store.locked(r.inTx, func() {
		for _, m := range r.store.outbox {
			if m.Status == shared.OutboxStatusPending && len(out) < limit {
				m := m
				out = append(out, &m)
			}
		}
	})
	return out, nil
}

func (r *memOutboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	r.store.locked(r.inTx, func() {
		for i := range r.store.outbox {
			if r.store.outbox[i].ID == id {
				r.store.outbox[i].Status = status
			}
		}
	})
	return nil
}

func (r *memOutboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	r.store.locked(r.inTx, func() {
		for i := range r.store.outbox {
			if r.store.outbox[i].ID == id {
				r.store.outbox[i].Attempts++
			}
		}
	})
	return nil
}

func (r *memOutboxRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
