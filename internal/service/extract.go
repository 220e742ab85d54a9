package service

import (
	"encoding/json"
	"strconv"
	"strings"
)

// jsonDoc is a decoded JSON object navigated by dotted paths.
// Gateways report the same field at different nesting levels depending on API
// version and endpoint, so lookups try a list of candidate paths in order.
type jsonDoc map[string]any

func parseJSONDoc(raw []byte) jsonDoc {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

func (d jsonDoc) lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// firstString returns the first non-empty string found at any of paths.
func (d jsonDoc) firstString(paths ...string) string {
	for _, p := range paths {
		v, ok := d.lookup(p)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// number returns the value at path as a float64, accepting numeric strings.
func (d jsonDoc) number(path string) (float64, bool) {
	v, ok := d.lookup(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

var (
	redirectURLPaths = []string{
		"data.instrumentResponse.redirectInfo.url",
		"redirectUrl",
		"data.redirectUrl",
		"data.url",
		"checkoutUrl",
	}
	statusPaths = []string{
		"state",
		"status",
		"data.state",
		"data.status",
		"payload.state",
		"code",
	}
	transactionIDPaths = []string{
		"merchantTransactionId",
		"merchantOrderId",
		"transactionId",
		"data.merchantTransactionId",
		"data.merchantOrderId",
		"payload.merchantOrderId",
		"payload.merchantTransactionId",
	}
)
