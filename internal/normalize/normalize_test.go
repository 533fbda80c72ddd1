package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "partyname", Key("Party Name"))
	assert.Equal(t, "partyname", Key(" party_name "))
	assert.Equal(t, "mobileno", Key("Mobile No."))
	assert.Equal(t, "", Key("--"))
}

func TestFindHeader(t *testing.T) {
	headers := []string{"Bill No", "PARTY-NAME", "Total"}

	h, ok := FindHeader(headers, []string{"Customer Name", "Party Name"})
	require.True(t, ok)
	assert.Equal(t, "PARTY-NAME", h)

	_, ok = FindHeader(headers, []string{"Mobile No"})
	assert.False(t, ok)

	_, ok = FindHeader(headers, nil)
	assert.False(t, ok)
}

func TestBuildHeaderMap(t *testing.T) {
	table := AliasTable{
		{Key: "name", Names: []string{"Party Name", "Customer Name"}},
		{Key: "mobile", Names: []string{"Mobile No", "Phone Number"}},
		{Key: "email", Names: []string{"Email"}},
	}

	m := BuildHeaderMap([]string{"customer name", "Phone Number"}, table)

	assert.Equal(t, HeaderMap{"name": "customer name", "mobile": "Phone Number"}, m)
	assert.Equal(t, []string{"Email"}, table.Names("email"))
	assert.Nil(t, table.Names("gstin"))
}

func TestHeadersAndLookup(t *testing.T) {
	rows := []map[string]any{
		{"b": 1, "a": 2},
		{"c": 3, "a": 4},
	}
	assert.Equal(t, []string{"a", "b", "c"}, Headers(rows))

	v, ok := Lookup(map[string]any{"VOUCHERNUMBER": "S-1"}, []string{"VoucherNo", "VoucherNumber"})
	require.True(t, ok)
	assert.Equal(t, "S-1", v)

	_, ok = Lookup(map[string]any{"x": 1}, []string{"VoucherNo"})
	assert.False(t, ok)
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"+91 98765 43210", "9876543210"},
		{"09876543210", "9876543210"},
		{"98765432101234", "5432101234"},
		{"9876543210", "9876543210"},
		{"12345", "12345"},
		{"", ""},
		{9876543210.0, "9876543210"},
	}
	for _, tt := range tests {
		got := Phone(tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
	assert.True(t, ValidPhone("9876543210"))
	assert.False(t, ValidPhone("12345"))
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, time.July, 4, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		in     any
		want   string
		parsed bool
	}{
		{"serial number", 45000.0, "2023-03-15", true},
		{"serial string", "45000", "2023-03-15", true},
		{"serial with time", "45000.75", "2023-03-15", true},
		{"day first dashes", "15-03-2024", "2024-03-15", true},
		{"day first slashes", "5/3/2024", "2024-03-05", true},
		{"iso datetime", "2024-03-15T00:00:00", "2024-03-15", true},
		{"iso date", "2024-03-15", "2024-03-15", true},
		{"compact", "20240401", "2024-04-01", true},
		{"free form", "1-Apr-2024", "2024-04-01", true},
		{"garbage", "not a date", "2025-07-04", false},
		{"impossible day", "31/02/2024", "2025-07-04", false},
		{"empty", "", "2025-07-04", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ParseDate(tt.in, now)
			assert.Equal(t, tt.parsed, ok)
			assert.Equal(t, tt.want, d.Format(ISODate))
		})
	}

	assert.Equal(t, "2024-03-15", Date("15-03-2024", now))
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"1,250.50", "1250.5"},
		{"₹ 999", "999"},
		{"Rs. 10", "10"},
		{"500.00 Dr", "500"},
		{"500.00 Cr", "-500"},
		{"(75)", "-75"},
		{"", "0"},
		{nil, "0"},
		{12.25, "12.25"},
	}
	for _, tt := range tests {
		got, err := Amount(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "input %v got %s", tt.in, got)
	}

	_, err := Amount("twelve")
	assert.Error(t, err)
	assert.True(t, AmountOrZero("twelve").IsZero())
}
