package cloudstack

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// CanonicalQuery builds the string that is signed: keys lower-cased and sorted,
// values URL-encoded with their case preserved.
func CanonicalQuery(params url.Values) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		v := ""
		if len(vs) > 0 {
			v = vs[0]
		}
		pairs = append(pairs, pair{key: strings.ToLower(k), value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+escape(p.value))
	}
	return strings.Join(parts, "&")
}

// Sign returns the base64 HMAC-SHA1 signature of the canonical query.
func Sign(params url.Values, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(CanonicalQuery(params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// escape matches the API's expectation of %20 rather than '+' for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
