package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/repository"
	"ledger-ingest/pkg/apperr"
)

type customerRepo struct{ s *Store }

func (r customerRepo) UpsertByPhone(_ context.Context, source string, candidates []domain.CustomerCandidate) ([]repository.ResolvedCustomer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("customers.upsert"); err != nil {
		return nil, err
	}

	st := r.s.st
	out := make([]repository.ResolvedCustomer, 0, len(candidates))
	for _, c := range candidates {
		if id, ok := st.customerByPhone[c.Phone]; ok {
			out = append(out, repository.ResolvedCustomer{ID: id, Phone: c.Phone})
			continue
		}
		cust := domain.Customer{
			ID:         uuid.NewString(),
			Name:       c.Name,
			Phone:      c.Phone,
			Source:     source,
			ExternalID: c.ExternalID,
			CreatedAt:  r.s.now(),
		}
		st.customers[cust.ID] = cust
		st.customerByPhone[cust.Phone] = cust.ID
		st.customerOrder = append(st.customerOrder, cust.ID)
		out = append(out, repository.ResolvedCustomer{ID: cust.ID, Phone: cust.Phone, Created: true})
	}
	return out, nil
}

func (r customerRepo) FindIDsByPhone(_ context.Context, phones []string) (map[string]string, error) {
	if err := r.s.fail("customers.lookup"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[string]string, len(phones))
	for _, p := range phones {
		if id, ok := r.s.st.customerByPhone[p]; ok {
			ids[p] = id
		}
	}
	return ids, nil
}

func (r customerRepo) FindByName(_ context.Context, name string) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(name))
	for _, id := range r.s.st.customerOrder {
		c := r.s.st.customers[id]
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return &c, nil
		}
	}
	return nil, nil
}

func (r customerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer not found")
	}
	return &c, nil
}

type groupRepo struct{ s *Store }

func (r groupRepo) UpsertByName(_ context.Context, groups []domain.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("groups.upsert"); err != nil {
		return err
	}
	for _, g := range groups {
		r.s.st.groups[g.Name] = g
	}
	return nil
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) UpsertByVoucher(_ context.Context, entries []domain.LedgerEntry) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ledger.upsert"); err != nil {
		return 0, 0, err
	}

	st := r.s.st
	var inserted, replaced int
	for _, e := range entries {
		idx := -1
		if e.VoucherNo != nil {
			for i := range st.ledger {
				if v := st.ledger[i].VoucherNo; v != nil && *v == *e.VoucherNo {
					idx = i
					break
				}
			}
		}
		if idx >= 0 {
			e.ID = st.ledger[idx].ID
			st.ledger[idx] = e
			replaced++
			continue
		}
		e.ID = st.nextID()
		st.ledger = append(st.ledger, e)
		inserted++
	}
	return inserted, replaced, nil
}

func (r ledgerRepo) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.s.st.ledger {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.After(out[j].EntryDate)
		}
		return out[i].ID > out[j].ID
	})
	return capped(out, limit), nil
}

func (r ledgerRepo) CountByCustomer(_ context.Context, customerID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.st.ledger {
		if e.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

type billRepo struct{ s *Store }

func (r billRepo) UpsertByBillNo(_ context.Context, bills []domain.Bill) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("bills.upsert"); err != nil {
		return err
	}

	st := r.s.st
next:
	for _, b := range bills {
		for i := range st.bills {
			if st.bills[i].BillNo == b.BillNo {
				b.ID = st.bills[i].ID
				st.bills[i] = b
				continue next
			}
		}
		b.ID = st.nextID()
		st.bills = append(st.bills, b)
	}
	return nil
}

func (r billRepo) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Bill
	for _, b := range r.s.st.bills {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BillDate.Equal(out[j].BillDate) {
			return out[i].BillDate.After(out[j].BillDate)
		}
		return out[i].ID > out[j].ID
	})
	return capped(out, limit), nil
}

func (r billRepo) SumByCustomer(_ context.Context, customerID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, b := range r.s.st.bills {
		if b.CustomerID == customerID {
			total = total.Add(b.Amount)
		}
	}
	return total, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) ExistsByReference(_ context.Context, customerID, referenceNo, source string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.st.payments {
		if p.CustomerID == customerID && p.Source == source && p.ReferenceNo != nil && *p.ReferenceNo == referenceNo {
			return true, nil
		}
	}
	return false, nil
}

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.create"); err != nil {
		return err
	}
	if p.ReferenceNo != nil {
		for _, existing := range r.s.st.payments {
			if existing.CustomerID == p.CustomerID && existing.Source == p.Source &&
				existing.ReferenceNo != nil && *existing.ReferenceNo == *p.ReferenceNo {
				return apperr.Duplicate("payment reference already recorded")
			}
		}
	}
	p.ID = r.s.st.nextID()
	r.s.st.payments = append(r.s.st.payments, *p)
	return nil
}

func (r paymentRepo) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.s.st.payments {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.After(out[j].PaymentDate)
		}
		return out[i].ID > out[j].ID
	})
	return capped(out, limit), nil
}

func (r paymentRepo) SumByCustomer(_ context.Context, customerID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, p := range r.s.st.payments {
		if p.CustomerID == customerID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) Exists(_ context.Context, invoiceNo, customerID, source string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.st.invoices {
		if inv.InvoiceNo == invoiceNo && inv.CustomerID == customerID && inv.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (r invoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("invoices.create"); err != nil {
		return err
	}
	for _, existing := range r.s.st.invoices {
		if existing.InvoiceNo == inv.InvoiceNo && existing.CustomerID == inv.CustomerID && existing.Source == inv.Source {
			return apperr.Duplicate("invoice already recorded")
		}
	}

	inv.ID = r.s.st.nextID()
	inv.CreatedAt = r.s.now()
	items := make([]domain.InvoiceItem, len(inv.Items))
	for i, item := range inv.Items {
		item.ID = r.s.st.nextID()
		item.InvoiceID = inv.ID
		items[i] = item
	}
	inv.Items = items

	stored := *inv
	stored.Items = append([]domain.InvoiceItem(nil), items...)
	r.s.st.invoices = append(r.s.st.invoices, stored)
	return nil
}

func (r invoiceRepo) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range r.s.st.invoices {
		if inv.CustomerID == customerID {
			inv.Items = nil
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return capped(out, limit), nil
}

func (r invoiceRepo) SumByCustomer(_ context.Context, customerID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, inv := range r.s.st.invoices {
		if inv.CustomerID == customerID {
			total = total.Add(inv.TotalAmount)
		}
	}
	return total, nil
}

type productRepo struct{ s *Store }

func (r productRepo) Exists(_ context.Context, code *string, name string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.st.products {
		if code != nil && *code != "" {
			if p.Code != nil && *p.Code == *code {
				return true, nil
			}
			continue
		}
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r productRepo) Create(_ context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("products.create"); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.s.st.products = append(r.s.st.products, *p)
	return nil
}

type stagingRepo struct{ s *Store }

func (r stagingRepo) Create(_ context.Context, rec *domain.StagingImport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("staging.create"); err != nil {
		return err
	}
	rec.CreatedAt = r.s.now()
	r.s.st.staging[rec.ID] = *rec
	r.s.st.stagingSeq[rec.ID] = r.s.st.nextID()
	return nil
}

func (r stagingRepo) GetByID(_ context.Context, id string) (*domain.StagingImport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.st.staging[id]
	if !ok {
		return nil, apperr.NotFound("import not found")
	}
	return &rec, nil
}

func (r stagingRepo) GetForUpdate(ctx context.Context, id string) (*domain.StagingImport, error) {
	return r.GetByID(ctx, id)
}

func (r stagingRepo) MarkProcessed(_ context.Context, id string, processed int, errorLog []domain.RowError) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("staging.mark"); err != nil {
		return err
	}
	rec, ok := r.s.st.staging[id]
	if !ok {
		return apperr.NotFound("import not found")
	}
	rec.Status = domain.StagingProcessed
	rec.ProcessedCount = processed
	rec.ErrorLog = append([]domain.RowError(nil), errorLog...)
	r.s.st.staging[id] = rec
	return nil
}

func (r stagingRepo) ListRecent(_ context.Context, limit int) ([]domain.StagingImport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.StagingImport, 0, len(r.s.st.staging))
	for _, rec := range r.s.st.staging {
		rec.RawData = nil
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.st.stagingSeq[out[i].ID] > r.s.st.stagingSeq[out[j].ID]
	})
	return capped(out, limit), nil
}

type metaRepo struct{ s *Store }

func (r metaRepo) Get(_ context.Context, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.st.meta[key], nil
}

func (r metaRepo) Set(_ context.Context, key string, value bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("meta.set"); err != nil {
		return err
	}
	r.s.st.meta[key] = value
	return nil
}

func (r metaRepo) CompareAndSet(_ context.Context, key string, from, to bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("meta.set"); err != nil {
		return false, err
	}
	if r.s.st.meta[key] != from {
		return false, nil
	}
	r.s.st.meta[key] = to
	return true, nil
}

type importLogRepo struct{ s *Store }

func (r importLogRepo) Create(_ context.Context, l *domain.ImportLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("logs.create"); err != nil {
		return err
	}
	l.ID = r.s.st.nextID()
	l.CreatedAt = r.s.now()
	r.s.st.logs = append(r.s.st.logs, *l)
	return nil
}

func (r importLogRepo) ListRecent(_ context.Context, limit int) ([]domain.ImportLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.ImportLog, 0, len(r.s.st.logs))
	for i := len(r.s.st.logs) - 1; i >= 0; i-- {
		out = append(out, r.s.st.logs[i])
	}
	return capped(out, limit), nil
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
