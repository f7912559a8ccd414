package alpaca

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseParamsSources(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?Connected=true&ClientID=4", nil)
		p := parseParams(req)
		if v, ok := p.get("Connected"); !ok || v != "true" {
			t.Errorf("Connected = %q, %v", v, ok)
		}
		if v, _ := p.get("ClientID"); v != "4" {
			t.Errorf("ClientID = %q", v)
		}
	})

	t.Run("form body", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/x", strings.NewReader("Connected=false"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		p := parseParams(req)
		if v, ok := p.get("Connected"); !ok || v != "false" {
			t.Errorf("Connected = %q, %v", v, ok)
		}
	})

	t.Run("json body", func(t *testing.T) {
		body := `{"Connected": true, "ClientTransactionID": 12, "Note": "hi"}`
		req := httptest.NewRequest("PUT", "/x", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		p := parseParams(req)
		if v, _ := p.get("Connected"); v != "true" {
			t.Errorf("bool param = %q", v)
		}
		if v, _ := p.get("ClientTransactionID"); v != "12" {
			t.Errorf("numeric param = %q", v)
		}
		if v, _ := p.get("Note"); v != "hi" {
			t.Errorf("string param = %q", v)
		}
	})

	t.Run("names are case sensitive", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?connected=true", nil)
		p := parseParams(req)
		if _, ok := p.get("Connected"); ok {
			t.Error("lowercase key matched canonical name")
		}
	})

	t.Run("body wins over query", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/x?Connected=false", strings.NewReader("Connected=true"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		p := parseParams(req)
		if v, _ := p.get("Connected"); v != "true" {
			t.Errorf("Connected = %q, want body value", v)
		}
	})
}

func TestParseBool(t *testing.T) {
	cases := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"True", true, false},
		{" TRUE ", true, false},
		{"1", true, false},
		{"yes", true, false},
		{"on", true, false},
		{"false", false, false},
		{"0", false, false},
		{"no", false, false},
		{"off", false, false},
		{"banana", false, true},
		{"", false, true},
		{"2", false, true},
	}
	for _, tc := range cases {
		got, err := parseBool(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseBool(%q): want error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseBool(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestClientTxnID(t *testing.T) {
	if id, ok := (params{"ClientTransactionID": "42"}).clientTxnID(); !ok || id != 42 {
		t.Errorf("clientTxnID = %d, %v", id, ok)
	}
	for _, bad := range []string{"abc", "-1", "1.5", "4294967296"} {
		p := params{"ClientTransactionID": bad}
		if _, ok := p.clientTxnID(); ok {
			t.Errorf("clientTxnID(%q) accepted", bad)
		}
	}
	if _, ok := (params{}).clientTxnID(); ok {
		t.Error("clientTxnID on empty params accepted")
	}
}
