// Package attribution extracts campaign and click-tracking parameters from
// URLs and query strings.
package attribution

import (
	"strings"

	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
	"github.com/zatekoja/trafficpipeline/pkg/urlparse"
)

// Record maps every field in Fields to its extracted value ("" when absent).
type Record map[string]string

const (
	FieldScheme        = "scheme"
	FieldHostname      = "hostname"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldSearchKeyword = "search_keyword"
	FieldHsaKeyword    = "hsa_kw"
)

// structuralFields come from the parsed URL rather than the query string.
var structuralFields = []string{FieldScheme, FieldHostname, FieldPath, FieldQuery}

// CampaignFields are the query parameters copied into a Record, in document order.
var CampaignFields = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_term",
	"utm_id",
	"utm_source_platform",
	"utm_creative_format",
	"utm_marketing_tactic",
	"product",
	FieldSearchKeyword,
	// auto-tagging click identifiers
	"gclid",
	"gbraid",
	"wbraid",
	"gad_source",
	"dclid",
	"msclkid",
	"fbclid",
	"ttclid",
	"twclid",
	"li_fat_id",
	"yclid",
	"epik",
	"sccid",
	"rdt_cid",
	"irclickid",
	"mc_cid",
	"mc_eid",
	// HubSpot ads manual tagging
	"hsa_acc",
	"hsa_cam",
	"hsa_grp",
	"hsa_ad",
	"hsa_src",
	"hsa_tgt",
	FieldHsaKeyword,
	"hsa_mt",
	"hsa_net",
	"hsa_ver",
}

// searchKeywordParams are scanned in this order and every hit overwrites the
// previous one, so the last parameter in the list wins.
var searchKeywordParams = []string{"ask", "searchfor", "wd", "kw", "Q", "query", "q"}

// normalizedFields are passed through NormalizeString before storage.
var normalizedFields = map[string]bool{
	FieldSearchKeyword: true,
	FieldHsaKeyword:    true,
}

// Fields returns every field a Record carries.
func Fields() []string {
	fields := make([]string, 0, len(structuralFields)+len(CampaignFields))
	fields = append(fields, structuralFields...)
	return append(fields, CampaignFields...)
}

// NewRecord returns a Record with every field set to "".
func NewRecord() Record {
	rec := make(Record, len(structuralFields)+len(CampaignFields))
	for _, f := range Fields() {
		rec[f] = ""
	}
	return rec
}

// ParseURL parses raw and extracts attribution from its query string.
// A malformed or empty URL yields the all-empty Record and the parse error.
func ParseURL(raw string) (Record, error) {
	rec := NewRecord()

	parsed, err := urlparse.Parse(raw, false)
	if err != nil {
		return rec, err
	}

	rec[FieldScheme] = parsed.Scheme
	rec[FieldHostname] = parsed.Hostname
	rec[FieldPath] = parsed.Path
	rec[FieldQuery] = parsed.Query

	fillCampaign(rec, parseQS(parsed.Query))
	return rec, nil
}

// ParseQuery extracts attribution from a bare query string. A leading "?" is
// ignored. Structural fields are left empty.
func ParseQuery(rawQuery string) (Record, error) {
	rec := NewRecord()

	rawQuery = strings.TrimPrefix(strings.TrimSpace(rawQuery), "?")
	if rawQuery == "" {
		return rec, apperrors.NewMalformedInputError("empty query string", nil)
	}

	rec[FieldQuery] = rawQuery
	fillCampaign(rec, parseQS(rawQuery))
	return rec, nil
}

func fillCampaign(rec Record, values map[string]string) {
	for _, field := range CampaignFields {
		if field == FieldSearchKeyword {
			continue
		}
		if v, ok := values[field]; ok {
			if normalizedFields[field] {
				v = NormalizeString(v)
			}
			rec[field] = v
		}
	}

	for _, key := range searchKeywordParams {
		if v, ok := values[key]; ok {
			rec[FieldSearchKeyword] = NormalizeString(v)
		}
	}
}

// parseQS returns the first non-blank value of every key. Pairs are split
// on "&" only, so ";" stays part of a value, and pairs without "=" are
// ignored. A malformed escape is kept literally instead of dropping the pair.
func parseQS(rawQuery string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		key = unquotePlus(key)
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = unquotePlus(value)
	}
	return out
}

// unquotePlus decodes "+" as a space and every well-formed %XX escape.
// Anything else is copied through unchanged; invalid UTF-8 becomes U+FFFD.
func unquotePlus(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
