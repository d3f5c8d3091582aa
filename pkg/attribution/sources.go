package attribution

const (
	// RequestPrefix marks fields taken from the request's own query string.
	RequestPrefix = "clientRequest_"
	// RefererPrefix marks campaign fields taken from the referer URL.
	RefererPrefix = "clientReferer_"
)

var refererStructuralKeys = map[string]string{
	FieldScheme:   "clientRefererScheme",
	FieldHostname: "clientRefererHost",
	FieldPath:     "clientRefererPath",
	FieldQuery:    "clientRefererQuery",
}

// ExtractReferer parses a referer URL into document keys: the URL parts as
// clientReferer{Scheme,Host,Path,Query} and campaign fields prefixed with
// RefererPrefix. Every key is present; the error is informational only.
func ExtractReferer(referer string) (map[string]string, error) {
	rec, err := ParseURL(referer)

	out := make(map[string]string, len(rec))
	for field, key := range refererStructuralKeys {
		out[key] = rec[field]
	}
	for _, field := range CampaignFields {
		out[RefererPrefix+field] = rec[field]
	}
	return out, err
}

// ExtractRequestQuery parses the request's query string into campaign fields
// prefixed with RequestPrefix. Every key is present; the error is
// informational only.
func ExtractRequestQuery(rawQuery string) (map[string]string, error) {
	rec, err := ParseQuery(rawQuery)

	out := make(map[string]string, len(CampaignFields))
	for _, field := range CampaignFields {
		out[RequestPrefix+field] = rec[field]
	}
	return out, err
}

// RefererKeys lists every key ExtractReferer emits.
func RefererKeys() []string {
	keys := make([]string, 0, len(refererStructuralKeys)+len(CampaignFields))
	for _, field := range structuralFields {
		keys = append(keys, refererStructuralKeys[field])
	}
	for _, field := range CampaignFields {
		keys = append(keys, RefererPrefix+field)
	}
	return keys
}

// RequestKeys lists every key ExtractRequestQuery emits.
func RequestKeys() []string {
	keys := make([]string, 0, len(CampaignFields))
	for _, field := range CampaignFields {
		keys = append(keys, RequestPrefix+field)
	}
	return keys
}
