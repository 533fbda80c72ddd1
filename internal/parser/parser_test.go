package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/apperr"
)

const masterXML = `<ENVELOPE>
 <HEADER><TALLYREQUEST>Import Data</TALLYREQUEST></HEADER>
 <BODY>
  <IMPORTDATA>
   <REQUESTDATA>
    <TALLYMESSAGE xmlns:UDF="TallyUDF">
     <GROUP NAME="Sundry Debtors" ACTION="Create"><PARENT>Current Assets</PARENT></GROUP>
    </TALLYMESSAGE>
    <TALLYMESSAGE xmlns:UDF="TallyUDF">
     <LEDGER NAME="Ravi Traders" ACTION="Create">
      <PARENT>Sundry Debtors</PARENT>
      <LEDGERMOBILE>+91 98765 43210</LEDGERMOBILE>
     </LEDGER>
    </TALLYMESSAGE>
    <TALLYMESSAGE xmlns:UDF="TallyUDF">
     <LEDGER NAME="Cash&#4;" ACTION="Create"><PARENT>Cash-in-Hand</PARENT></LEDGER>
    </TALLYMESSAGE>
   </REQUESTDATA>
  </IMPORTDATA>
 </BODY>
</ENVELOPE>`

const voucherXML = `<ENVELOPE>
 <BODY>
  <IMPORTDATA>
   <REQUESTDATA>
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
     </VOUCHER>
    </TALLYMESSAGE>
   </REQUESTDATA>
  </IMPORTDATA>
 </BODY>
</ENVELOPE>`

func TestMarkupParser_Master(t *testing.T) {
	batch, err := NewMarkupParser().Parse(strings.NewReader(masterXML))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchMaster, batch.Kind)
	assert.Equal(t, 3, batch.Total)
	require.Len(t, batch.Records, 3)

	assert.Equal(t, TagGroup, batch.Records[0].Tag)
	assert.Equal(t, "Sundry Debtors", batch.Records[0].Fields["-NAME"])
	assert.Equal(t, "Current Assets", Text(batch.Records[0].Fields["PARENT"]))

	assert.Equal(t, TagLedger, batch.Records[1].Tag)
	assert.Equal(t, "+91 98765 43210", Text(batch.Records[1].Fields["LEDGERMOBILE"]))

	// control character reference stripped
	assert.Equal(t, "Cash", batch.Records[2].Fields["-NAME"])
}

func TestMarkupParser_Voucher(t *testing.T) {
	batch, err := NewMarkupParser().Parse(strings.NewReader(voucherXML))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchVoucher, batch.Kind)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, 2, batch.Total)

	sale := batch.Records[0].Fields
	assert.Equal(t, "9876543210", sale["Mobile"])
	assert.Equal(t, "Ravi Traders", sale["Name"])
	assert.Equal(t, "20240401", sale["Date"])
	assert.Equal(t, "S-101", sale["VoucherNo"])
	assert.Equal(t, "Sales", sale["VoucherType"])
	assert.Equal(t, "-1180.00", sale["Debit"])
	assert.Equal(t, "1180.00", sale["Credit"])

	receipt := batch.Records[1].Fields
	assert.Equal(t, "R-7", receipt["VoucherNo"])
	assert.Equal(t, "Receipt", receipt["VoucherType"])
	assert.NotContains(t, receipt, "Debit")
}

func TestMarkupParser_CollectionVariant(t *testing.T) {
	doc := `<ENVELOPE><BODY><DATA><COLLECTION>
	  <VOUCHER><DATE>20240401</DATE><VOUCHERNUMBER>9</VOUCHERNUMBER><PARTYNAME>A</PARTYNAME></VOUCHER>
	  <VOUCHER><DATE>20240402</DATE><VOUCHERNUMBER>10</VOUCHERNUMBER><PARTYNAME>B</PARTYNAME></VOUCHER>
	</COLLECTION></DATA></BODY></ENVELOPE>`

	batch, err := NewMarkupParser().Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchVoucher, batch.Kind)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, "10", batch.Records[1].Fields["VoucherNo"])
}

func TestMarkupParser_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(`<?xml version="1.0" encoding="UTF-16"?>` + masterXML))
	require.NoError(t, err)

	batch, err := NewMarkupParser().Parse(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchMaster, batch.Kind)
}

func TestMarkupParser_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "   "},
		{"not xml", "this is not xml"},
		{"no envelope", "<ROOT><BODY/></ROOT>"},
		{"no body", "<ENVELOPE><HEADER/></ENVELOPE>"},
		{"no messages", "<ENVELOPE><BODY><IMPORTDATA><REQUESTDATA/></IMPORTDATA></BODY></ENVELOPE>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarkupParser().Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Equal(t, apperr.KindMalformedInput, apperr.KindOf(err))
		})
	}
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestWorkbookParser_XLSX(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Party Name", "Mobile", "Total", "Total"},
		{"Ravi", 9876543210, 1200.5, 3},
		{},
		{"", "1234567890"},
	})

	rows, err := NewWorkbookParser().Parse("customers.XLSX", bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.Row{"Party Name": "Ravi", "Mobile": "9876543210", "Total": "1200.5", "Total_1": "3"}, rows[0])
	assert.Equal(t, domain.Row{"Mobile": "1234567890"}, rows[1])
}

func TestWorkbookParser_Errors(t *testing.T) {
	_, err := NewWorkbookParser().Parse("a.xlsx", bytes.NewReader(nil))
	assert.Equal(t, apperr.KindMalformedInput, apperr.KindOf(err))

	_, err = NewWorkbookParser().Parse("a.xlsx", strings.NewReader("not a zip"))
	assert.Equal(t, apperr.KindMalformedInput, apperr.KindOf(err))

	_, err = NewWorkbookParser().Parse("a.csv", strings.NewReader("a,b"))
	assert.Equal(t, apperr.KindMalformedInput, apperr.KindOf(err))
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("tally.XML"))
	assert.True(t, AllowedExtension("sheet.xls"))
	assert.True(t, AllowedExtension("sheet.xlsx"))
	assert.False(t, AllowedExtension("sheet.csv"))
	assert.False(t, AllowedExtension("noext"))
}

func TestToRows_HeaderOnly(t *testing.T) {
	assert.Empty(t, toRows([][]string{{"Name"}}))
	assert.Empty(t, toRows(nil))
}
