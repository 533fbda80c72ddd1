package parser

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

// Record tags found inside an accounting message.
const (
	TagGroup   = "GROUP"
	TagLedger  = "LEDGER"
	TagVoucher = "VOUCHER"
)

// Record is one definition or transaction lifted out of the markup tree.
// Master records keep the element map as is (attributes carry a "-" prefix);
// voucher records are flattened to the column-style keys of a spreadsheet
// voucher export so both go through the same alias lookup.
type Record struct {
	Tag    string
	Fields domain.Row
}

// Batch is the classified result of a markup parse. Kind decides which of
// the record tags the caller should expect.
type Batch struct {
	Kind    domain.BatchKind
	Total   int
	Records []Record
}

// messagePaths are the nesting variants accounting exports use for their
// message collection, tried in order.
var messagePaths = [][]string{
	{"IMPORTDATA", "REQUESTDATA", "TALLYMESSAGE"},
	{"DATA", "COLLECTION", "VOUCHER"},
	{"DATA", "TALLYMESSAGE"},
}

var (
	decEntityRe = regexp.MustCompile(`&#([0-9]+);`)
	hexEntityRe = regexp.MustCompile(`&#[xX]([0-9a-fA-F]+);`)
)

func init() {
	// content is already UTF-8 by the time mxj sees it; a stale UTF-16
	// declaration must not make encoding/xml refuse the document
	mxj.XmlCharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
}

// MarkupParser reads accounting-package XML exports.
type MarkupParser struct{}

func NewMarkupParser() *MarkupParser {
	return &MarkupParser{}
}

// Parse decodes the document, locates the message collection and classifies
// the batch. Structural problems are MalformedInput errors.
func (p *MarkupParser) Parse(r io.Reader) (*Batch, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.MalformedInput("failed to read markup file", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.MalformedInput("markup file is empty", nil)
	}

	content, err := decodeText(raw)
	if err != nil {
		return nil, apperr.MalformedInput("failed to decode markup file", err)
	}

	tree, err := mxj.NewMapXml(sanitize(content))
	if err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to parse markup document")
		return nil, apperr.MalformedInput("invalid XML document", err)
	}

	envelope, ok := asMap(tree["ENVELOPE"])
	if !ok {
		return nil, apperr.MalformedInput("invalid XML: missing ENVELOPE or BODY tag", nil)
	}
	body, ok := asMap(envelope["BODY"])
	if !ok {
		return nil, apperr.MalformedInput("invalid XML: missing ENVELOPE or BODY tag", nil)
	}

	messages, direct := findMessages(body)
	if len(messages) == 0 {
		return nil, apperr.MalformedInput("no TALLYMESSAGE or VOUCHER data found in XML", nil)
	}

	return classify(messages, direct), nil
}

// findMessages returns the first non-empty message collection. direct is set
// when the collection holds voucher elements themselves rather than
// wrapping messages.
func findMessages(body map[string]interface{}) (messages []map[string]interface{}, direct bool) {
	for _, path := range messagePaths {
		node := interface{}(body)
		for _, key := range path {
			m, ok := asMap(node)
			if !ok {
				node = nil
				break
			}
			node = m[key]
		}
		if list := asMaps(node); len(list) > 0 {
			return list, path[len(path)-1] == TagVoucher
		}
	}
	return nil, false
}

func classify(messages []map[string]interface{}, direct bool) *Batch {
	if !direct {
		for _, m := range messages {
			if _, ok := m[TagGroup]; ok {
				return masterBatch(messages)
			}
			if _, ok := m[TagLedger]; ok {
				return masterBatch(messages)
			}
		}
	}

	batch := &Batch{Kind: domain.BatchVoucher}
	for _, m := range messages {
		var vouchers []map[string]interface{}
		switch {
		case direct:
			vouchers = []map[string]interface{}{m}
		case m[TagVoucher] != nil:
			vouchers = asMaps(m[TagVoucher])
		case m["DATE"] != nil:
			vouchers = []map[string]interface{}{m}
		}
		for _, v := range vouchers {
			batch.Records = append(batch.Records, Record{Tag: TagVoucher, Fields: flattenVoucher(v)})
		}
	}
	batch.Total = len(batch.Records)
	return batch
}

func masterBatch(messages []map[string]interface{}) *Batch {
	batch := &Batch{Kind: domain.BatchMaster, Total: len(messages)}
	for _, m := range messages {
		for _, tag := range []string{TagGroup, TagLedger} {
			for _, def := range asMaps(m[tag]) {
				batch.Records = append(batch.Records, Record{Tag: tag, Fields: domain.Row(def)})
			}
		}
	}
	return batch
}

// flattenVoucher maps a voucher element onto spreadsheet-style columns.
// The first two ledger entry lines carry the debit and credit legs.
func flattenVoucher(v map[string]interface{}) domain.Row {
	entries := asMaps(v["ALLLEDGERENTRIES.LIST"])
	if len(entries) == 0 {
		entries = asMaps(v["LEDGERENTRIES.LIST"])
	}

	row := domain.Row{}
	put := func(key string, val interface{}) {
		if s := Text(val); s != "" {
			row[key] = s
		}
	}

	mobile := v["PARTYMOBILE"]
	if Text(mobile) == "" {
		if addr, ok := asMap(v["BASICBUYERADDRESS.LIST"]); ok {
			mobile = addr["BASICBUYERADDRESS"]
		} else if addr, ok := asMap(v["BASICBUYERADDRESS"]); ok {
			mobile = addr["ADDRESS"]
		}
	}
	if Text(mobile) == "" {
		mobile = v["PARTYNAME"]
	}

	put("Mobile", mobile)
	put("Name", firstNonEmpty(v["PARTYNAME"], v["PARTYLEDGERNAME"]))
	put("Date", v["DATE"])
	put("VoucherNo", v["VOUCHERNUMBER"])
	put("VoucherType", firstNonEmpty(v["VOUCHERTYPENAME"], v["-VCHTYPE"]))
	if len(entries) > 0 {
		put("Debit", entries[0]["AMOUNT"])
	}
	if len(entries) > 1 {
		put("Credit", entries[1]["AMOUNT"])
	}
	put("Balance", v["BALANCE"])
	put("Amount", v["AMOUNT"])
	put("Reference", v["REFERENCE"])
	put("Mode", v["MODE"])
	return row
}

// Text returns the character data of a node: a plain string, the #text of
// an element with attributes, or the first element of a repeated node.
func Text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		return Text(t["#text"])
	case []interface{}:
		for _, e := range t {
			if s := Text(e); s != "" {
				return s
			}
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func firstNonEmpty(vals ...interface{}) interface{} {
	for _, v := range vals {
		if Text(v) != "" {
			return v
		}
	}
	return nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case mxj.Map:
		return t, true
	case domain.Row:
		return t, true
	}
	return nil, false
}

func asMaps(v interface{}) []map[string]interface{} {
	if m, ok := asMap(v); ok {
		return []map[string]interface{}{m}
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, e := range list {
		if m, ok := asMap(e); ok {
			out = append(out, m)
		}
	}
	return out
}

// decodeText turns UTF-16 exports (with or without BOM) and BOM-prefixed
// UTF-8 into plain UTF-8.
func decodeText(raw []byte) ([]byte, error) {
	var dec transform.Transformer
	switch {
	case len(raw) >= 2 && raw[0] == '<' && raw[1] == 0:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case len(raw) >= 2 && raw[0] == 0 && raw[1] == '<':
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}
	out, _, err := transform.Bytes(dec, raw)
	return out, err
}

// sanitize drops control characters that are not legal in XML 1.0, both as
// raw bytes and as character references such as "&#4;".
func sanitize(b []byte) []byte {
	b = bytes.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, b)
	strip := func(re *regexp.Regexp, base int) {
		b = re.ReplaceAllFunc(b, func(ref []byte) []byte {
			m := re.FindSubmatch(ref)
			n, err := strconv.ParseInt(string(m[1]), base, 32)
			if err == nil && n < 0x20 && n != '\t' && n != '\n' && n != '\r' {
				return nil
			}
			return ref
		})
	}
	strip(decEntityRe, 10)
	strip(hexEntityRe, 16)
	return b
}
