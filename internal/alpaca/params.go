package alpaca

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// params holds one request's Alpaca parameters, merged from the query
// string and either a form or JSON body. ASCOM clients send
// form-encoded PUTs; JSON shows up from hand-rolled scripts. Parameter
// names match exactly, per the Alpaca API definition.
type params map[string]string

func parseParams(r *http.Request) params {
	p := params{}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			p[name] = values[0]
		}
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return p
		}
		var payload map[string]any
		if json.Unmarshal(body, &payload) != nil {
			return p
		}
		for name, value := range payload {
			p[name] = jsonScalar(value)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return p
		}
		for name, values := range r.PostForm {
			if len(values) > 0 {
				p[name] = values[0]
			}
		}
	}
	return p
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (p params) get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// parseBool accepts the value spellings ASCOM clients actually send.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// clientTxnID returns the ClientTransactionID when the request carries a
// usable one. Garbage is treated as absent rather than an error.
func (p params) clientTxnID() (uint32, bool) {
	raw, ok := p.get("ClientTransactionID")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
