// Package memstore is an in-memory repository.Store. Transactions are
// serialized and roll back by restoring a snapshot, which is enough for
// tests and dry runs but not for concurrent production traffic.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
)

// FailureHook lets tests fail a named write, e.g. "ledger.upsert".
type FailureHook func(op string) error

type state struct {
	seq int64

	customers       map[string]domain.Customer
	customerByPhone map[string]string
	customerOrder   []string

	groups   map[string]domain.Group
	ledger   []domain.LedgerEntry
	bills    []domain.Bill
	payments []domain.Payment
	invoices []domain.Invoice
	products []domain.Product

	staging    map[string]domain.StagingImport
	stagingSeq map[string]int64
	meta       map[string]bool
	logs       []domain.ImportLog
}

func newState() *state {
	return &state{
		customers:       make(map[string]domain.Customer),
		customerByPhone: make(map[string]string),
		groups:          make(map[string]domain.Group),
		staging:         make(map[string]domain.StagingImport),
		stagingSeq:      make(map[string]int64),
		meta:            make(map[string]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:             s.seq,
		customers:       make(map[string]domain.Customer, len(s.customers)),
		customerByPhone: make(map[string]string, len(s.customerByPhone)),
		customerOrder:   append([]string(nil), s.customerOrder...),
		groups:          make(map[string]domain.Group, len(s.groups)),
		ledger:          append([]domain.LedgerEntry(nil), s.ledger...),
		bills:           append([]domain.Bill(nil), s.bills...),
		payments:        append([]domain.Payment(nil), s.payments...),
		invoices:        append([]domain.Invoice(nil), s.invoices...),
		products:        append([]domain.Product(nil), s.products...),
		staging:         make(map[string]domain.StagingImport, len(s.staging)),
		stagingSeq:      make(map[string]int64, len(s.stagingSeq)),
		meta:            make(map[string]bool, len(s.meta)),
		logs:            append([]domain.ImportLog(nil), s.logs...),
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.customerByPhone {
		c.customerByPhone[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.staging {
		c.staging[k] = v
	}
	for k, v := range s.stagingSeq {
		c.stagingSeq[k] = v
	}
	for k, v := range s.meta {
		c.meta[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

type shared struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
	hook FailureHook
	now  func() time.Time
}

// Store implements repository.Store in memory.
type Store struct {
	*shared
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock pins the timestamps the store assigns.
func NewWithClock(now func() time.Time) *Store {
	return &Store{shared: &shared{st: newState(), now: now}}
}

// SetFailureHook installs or clears (nil) the write failure hook.
func (s *Store) SetFailureHook(h FailureHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// fail must be called with mu held.
func (s *Store) fail(op string) error {
	if s.hook == nil {
		return nil
	}
	if err := s.hook(op); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

func (s *Store) Customers() repository.CustomerRepository   { return customerRepo{s} }
func (s *Store) Groups() repository.GroupRepository         { return groupRepo{s} }
func (s *Store) Ledger() repository.LedgerRepository        { return ledgerRepo{s} }
func (s *Store) Bills() repository.BillRepository           { return billRepo{s} }
func (s *Store) Payments() repository.PaymentRepository     { return paymentRepo{s} }
func (s *Store) Invoices() repository.InvoiceRepository     { return invoiceRepo{s} }
func (s *Store) Products() repository.ProductRepository     { return productRepo{s} }
func (s *Store) Staging() repository.StagingRepository      { return stagingRepo{s} }
func (s *Store) Meta() repository.MetaRepository            { return metaRepo{s} }
func (s *Store) ImportLogs() repository.ImportLogRepository { return importLogRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&Store{shared: s.shared, inTx: true}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Counts reports table sizes.
type Counts struct {
	Customers int
	Groups    int
	Ledger    int
	Bills     int
	Payments  int
	Invoices  int
	Products  int
	Staging   int
	Logs      int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Customers: len(s.st.customers),
		Groups:    len(s.st.groups),
		Ledger:    len(s.st.ledger),
		Bills:     len(s.st.bills),
		Payments:  len(s.st.payments),
		Invoices:  len(s.st.invoices),
		Products:  len(s.st.products),
		Staging:   len(s.st.staging),
		Logs:      len(s.st.logs),
	}
}
