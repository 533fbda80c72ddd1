package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/importlock"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/reconciler"
	"ledger-ingest/internal/repository/memstore"
	"ledger-ingest/internal/validator"
	"ledger-ingest/pkg/apperr"
)

const masterXML = `<ENVELOPE><BODY><IMPORTDATA><REQUESTDATA>
 <TALLYMESSAGE><GROUP NAME="Sundry Debtors"><PARENT>Current Assets</PARENT></GROUP></TALLYMESSAGE>
 <TALLYMESSAGE><LEDGER NAME="Ravi Traders"><PARENT>Sundry Debtors</PARENT><LEDGERMOBILE>+91 98765 43210</LEDGERMOBILE></LEDGER></TALLYMESSAGE>
 <TALLYMESSAGE><LEDGER NAME="Cash"><PARENT>Cash-in-Hand</PARENT></LEDGER></TALLYMESSAGE>
</REQUESTDATA></IMPORTDATA></BODY></ENVELOPE>`

const voucherXML = `<ENVELOPE><BODY><IMPORTDATA><REQUESTDATA>
 <TALLYMESSAGE>
  <VOUCHER VCHTYPE="Sales">
   <DATE>20240401</DATE>
   <VOUCHERTYPENAME>Sales</VOUCHERTYPENAME>
   <VOUCHERNUMBER>S-101</VOUCHERNUMBER>
   <PARTYNAME>Ravi Traders</PARTYNAME>
   <PARTYMOBILE>9876543210</PARTYMOBILE>
   <ALLLEDGERENTRIES.LIST><LEDGERNAME>Ravi Traders</LEDGERNAME><AMOUNT>-1180.00</AMOUNT></ALLLEDGERENTRIES.LIST>
   <ALLLEDGERENTRIES.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>1180.00</AMOUNT></ALLLEDGERENTRIES.LIST>
  </VOUCHER>
 </TALLYMESSAGE>
 <TALLYMESSAGE>
  <VOUCHER VCHTYPE="Receipt">
   <DATE>20240405</DATE>
   <VOUCHERNUMBER>R-7</VOUCHERNUMBER>
   <PARTYNAME>Ravi Traders</PARTYNAME>
   <PARTYMOBILE>9876543210</PARTYMOBILE>
   <ALLLEDGERENTRIES.LIST><LEDGERNAME>Ravi Traders</LEDGERNAME><AMOUNT>500.00</AMOUNT></ALLLEDGERENTRIES.LIST>
  </VOUCHER>
 </TALLYMESSAGE>
 <TALLYMESSAGE>
  <VOUCHER VCHTYPE="Sales">
   <DATE>20240406</DATE>
   <VOUCHERNUMBER>S-102</VOUCHERNUMBER>
   <PARTYNAME>Walk-in</PARTYNAME>
   <PARTYMOBILE>9000000000</PARTYMOBILE>
  </VOUCHER>
 </TALLYMESSAGE>
</REQUESTDATA></IMPORTDATA></BODY></ENVELOPE>`

// failingReader fails the test if anything reads it.
type failingReader struct{ t *testing.T }

func (r failingReader) Read([]byte) (int, error) {
	r.t.Fatal("upload was read")
	return 0, errors.New("unreachable")
}

func newMarkup(s *memstore.Store) MarkupImportService {
	return NewMarkupImportService(s, importlock.NewStoreGuard(s.Meta()), reconciler.NewEngine(10), "tally")
}

func lockHeld(t *testing.T, s *memstore.Store) bool {
	t.Helper()
	v, err := s.Meta().Get(context.Background(), domain.MetaIsImporting)
	require.NoError(t, err)
	return v
}

func TestMarkupImport_MastersThenVouchers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newMarkup(s)

	res, err := svc.Import(ctx, strings.NewReader(masterXML))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchMaster, res.Type)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, msgMastersImported, res.Message)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Processed)
	assert.Equal(t, 1, *res.Stats.Groups)
	assert.Equal(t, 1, *res.Stats.Ledgers)
	assert.False(t, lockHeld(t, s))

	done, err := s.Meta().Get(ctx, domain.MetaFirstImportDone)
	require.NoError(t, err)
	assert.True(t, done)

	res, err = svc.Import(ctx, strings.NewReader(voucherXML))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchVoucher, res.Type)
	assert.Equal(t, msgVouchersProcessed, res.Message)
	assert.Equal(t, domain.ImportStats{Total: 3, Processed: 2, SkippedInvalid: 1}, res.Stats)

	counts := s.Counts()
	assert.Equal(t, 2, counts.Ledger)
	assert.Equal(t, 1, counts.Bills)
	assert.Equal(t, 1, counts.Payments)
	assert.Equal(t, 2, counts.Logs)
}

func TestMarkupImport_VoucherReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newMarkup(s)

	_, err := svc.Import(ctx, strings.NewReader(masterXML))
	require.NoError(t, err)
	_, err = svc.Import(ctx, strings.NewReader(voucherXML))
	require.NoError(t, err)

	res, err := svc.Import(ctx, strings.NewReader(voucherXML))
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Processed)
	assert.Equal(t, 2, res.Stats.Duplicates)

	counts := s.Counts()
	assert.Equal(t, 2, counts.Ledger)
	assert.Equal(t, 1, counts.Bills)
	assert.Equal(t, 1, counts.Payments)

	logs, err := s.ImportLogs().ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LogSuccess, logs[0].Status)
	assert.Equal(t, res.SessionID, logs[0].SessionID)
}

func TestMarkupImport_MastersRequired(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	res, err := newMarkup(s).Import(ctx, strings.NewReader(voucherXML))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeMastersRequired, apperr.CodeOf(err))
	assert.NotEmpty(t, res.SessionID)

	counts := s.Counts()
	assert.Zero(t, counts.Ledger)
	assert.Zero(t, counts.Customers)
	assert.Zero(t, counts.Logs)
	assert.False(t, lockHeld(t, s))
}

func TestMarkupImport_LockHeld(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Meta().Set(ctx, domain.MetaIsImporting, true))

	res, err := newMarkup(s).Import(ctx, failingReader{t})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConcurrencyRejected))
	assert.NotEmpty(t, res.SessionID)

	// the other import still owns the lock
	assert.True(t, lockHeld(t, s))
}

func TestMarkupImport_MalformedReleasesLock(t *testing.T) {
	s := memstore.New()

	res, err := newMarkup(s).Import(context.Background(), strings.NewReader("<ENVELOPE><HEADER/></ENVELOPE>"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindMalformedInput))
	assert.False(t, lockHeld(t, s))

	logs, err := s.ImportLogs().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, res.SessionID, logs[0].SessionID)
	assert.Equal(t, domain.BatchUnknown, logs[0].ImportType)
	assert.Equal(t, domain.LogFailed, logs[0].Status)
	require.NotNil(t, logs[0].ErrorSummary)
	assert.NotEmpty(t, *logs[0].ErrorSummary)
}

func TestMarkupImport_ChunkFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := NewMarkupImportService(s, importlock.NewStoreGuard(s.Meta()), reconciler.NewEngine(1), "tally")
	_, err := svc.Import(ctx, strings.NewReader(masterXML))
	require.NoError(t, err)

	calls := 0
	s.SetFailureHook(func(op string) error {
		if op == "ledger.upsert" {
			calls++
			if calls == 1 {
				return errors.New("serialization failure")
			}
		}
		return nil
	})

	res, err := svc.Import(ctx, strings.NewReader(voucherXML))
	require.NoError(t, err)
	assert.Equal(t, msgVouchersPartial, res.Message)
	assert.Equal(t, 1, res.Stats.Errors)
	assert.Equal(t, 1, res.Stats.Processed)

	logs, err := s.ImportLogs().ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LogPartial, logs[0].Status)
	assert.Equal(t, "Failed to process 1 rows in batch.", *logs[0].ErrorSummary)
	assert.False(t, lockHeld(t, s))
}

// sheet builds an xlsx workbook from a header row and data rows.
func sheet(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func newStaging(s *memstore.Store) StagingService {
	now := func() time.Time { return time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC) }
	return NewStagingService(s, parser.NewWorkbookParser(), validator.NewWithClock(now), reconciler.NewEngine(10), "vyapar")
}

func TestStaging_CustomersScenario(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newStaging(s)

	data := sheet(t,
		[]interface{}{"Party Name", "Mobile"},
		[]interface{}{"Ravi", "9876543210"},
		[]interface{}{"", "1234567890"},
	)
	staged, err := svc.Stage(ctx, "parties.xlsx", domain.ImportCustomers, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, msgStaged, staged.Message)
	assert.Equal(t, 2, staged.TotalRows)
	assert.Len(t, staged.Preview, 2)
	assert.Zero(t, s.Counts().Customers)

	res, err := svc.Sync(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.Equal(t, msgSyncCompleted, res.Message)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.ErrorLog, 1)
	assert.Equal(t, 3, res.ErrorLog[0].Row)
	assert.Equal(t, validator.ErrMissingName, res.ErrorLog[0].Error)

	rec, err := svc.Status(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagingProcessed, rec.Status)
	assert.Equal(t, 1, rec.ProcessedCount)

	again, err := svc.Sync(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, 1, again.Processed)
	assert.Equal(t, 1, s.Counts().Customers)
}

func TestStaging_InvoicesCustomerNotFound(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newStaging(s)

	data := sheet(t,
		[]interface{}{"Invoice No", "Party Name", "Date", "Total"},
		[]interface{}{"INV-9", "Nobody", "15-03-2024", "250"},
	)
	staged, err := svc.Stage(ctx, "sales.xlsx", domain.ImportInvoices, bytes.NewReader(data))
	require.NoError(t, err)

	res, err := svc.Sync(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	require.Len(t, res.ErrorLog, 1)
	assert.Equal(t, "Customer not found: Nobody", res.ErrorLog[0].Error)
	assert.Zero(t, s.Counts().Invoices)
}

func TestStaging_InvoicesReimportIsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newStaging(s)
	_, err := s.Customers().UpsertByPhone(ctx, "vyapar", []domain.CustomerCandidate{{Name: "Ravi Traders", Phone: "9876543210"}})
	require.NoError(t, err)

	data := sheet(t,
		[]interface{}{"Invoice No", "Party Name", "Date", "Total", "Received", "Balance"},
		[]interface{}{"101", "Ravi Traders", "2024-03-15", "1180", "500", "680"},
		[]interface{}{"102", "ravi traders ", "2024-03-16", "300", "", "300"},
	)

	first, err := svc.Stage(ctx, "sales.xlsx", domain.ImportInvoices, bytes.NewReader(data))
	require.NoError(t, err)
	res, err := svc.Sync(ctx, first.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Zero(t, res.Errors)
	assert.Equal(t, 1, s.Counts().Payments)

	second, err := svc.Stage(ctx, "sales.xlsx", domain.ImportInvoices, bytes.NewReader(data))
	require.NoError(t, err)
	res, err = svc.Sync(ctx, second.ImportID)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	require.Len(t, res.ErrorLog, 2)
	for _, e := range res.ErrorLog {
		assert.Equal(t, reconciler.ErrDuplicateInvoice, e.Error)
	}
	assert.Equal(t, 2, s.Counts().Invoices)
	assert.Equal(t, 1, s.Counts().Payments)

	history, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ImportID, history[0].ID)
	assert.Nil(t, history[0].RawData)
}

func TestStaging_SyncFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newStaging(s)

	data := sheet(t,
		[]interface{}{"Party Name", "Mobile"},
		[]interface{}{"Ravi", "9876543210"},
	)
	staged, err := svc.Stage(ctx, "parties.xlsx", domain.ImportCustomers, bytes.NewReader(data))
	require.NoError(t, err)

	s.SetFailureHook(func(op string) error {
		if op == "staging.mark" {
			return errors.New("connection lost")
		}
		return nil
	})
	_, err = svc.Sync(ctx, staged.ImportID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))

	rec, err := svc.Status(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagingPending, rec.Status)
	assert.Zero(t, s.Counts().Customers)

	s.SetFailureHook(nil)
	res, err := svc.Sync(ctx, staged.ImportID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestStaging_StageRejects(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := newStaging(s)

	_, err := svc.Stage(ctx, "x.xlsx", domain.ImportType("payments"), bytes.NewReader(nil))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	headerOnly := sheet(t, []interface{}{"Party Name", "Mobile"})
	_, err = svc.Stage(ctx, "x.xlsx", domain.ImportCustomers, bytes.NewReader(headerOnly))
	require.Error(t, err)
	assert.Contains(t, err.Error(), msgEmptySheet)

	_, err = svc.Sync(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, s.Counts().Staging)
}

func TestStaging_PreviewIsCapped(t *testing.T) {
	rows := [][]interface{}{{"Item Name", "Sales Price"}}
	for i := 0; i < 8; i++ {
		rows = append(rows, []interface{}{"Item", i})
	}
	staged, err := newStaging(memstore.New()).Stage(context.Background(), "items.xlsx", domain.ImportProducts, bytes.NewReader(sheet(t, rows...)))
	require.NoError(t, err)
	assert.Equal(t, 8, staged.TotalRows)
	assert.Len(t, staged.Preview, PreviewRows)
}

func TestLedgerQuery(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	markup := newMarkup(s)
	_, err := markup.Import(ctx, strings.NewReader(masterXML))
	require.NoError(t, err)
	_, err = markup.Import(ctx, strings.NewReader(voucherXML))
	require.NoError(t, err)

	ids, err := s.Customers().FindIDsByPhone(ctx, []string{"9876543210"})
	require.NoError(t, err)
	id := ids["9876543210"]

	q := NewLedgerQueryService(s)
	entries, err := q.Ledger(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	bills, err := q.Bills(ctx, id)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "S-101", bills[0].BillNo)

	payments, err := q.Payments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	invoices, err := q.Invoices(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, invoices)

	sum, err := q.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1180", sum.TotalPurchases.String())
	assert.Equal(t, "500", sum.TotalPaid.String())
	assert.Equal(t, "680", sum.CurrentBalance.String())
	assert.Equal(t, 2, sum.LedgerEntries)

	_, err = q.Summary(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	logs, err := q.ImportLogs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
