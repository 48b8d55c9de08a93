package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
	}{
		{"defaults", url.Values{}, 2026, 5},
		{"explicit", url.Values{"year": {"2025"}, "month": {"12"}}, 2025, 12},
		{"invalid month ignored", url.Values{"month": {"13"}}, 2026, 5},
		{"zero month ignored", url.Values{"month": {"0"}}, 2026, 5},
		{"garbage ignored", url.Values{"year": {"abc"}, "month": {"x"}}, 2026, 5},
		{"whitespace trimmed", url.Values{"year": {" 2024 "}, "month": {" 2 "}}, 2024, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMonthParams(tt.query, now)
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("ParseMonthParams() = %+v, want %d-%d", got, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := newParser(t, "name=+Kite+&recipient=Zoe&price=12.50&notes=line1%0Aline2%00", "application/x-www-form-urlencoded")
	if p.IsJSON() {
		t.Fatal("form body parsed as JSON")
	}
	in := p.GiftInput()
	if in.Name != "Kite" || in.Recipient != "Zoe" || in.Price != "12.50" {
		t.Errorf("GiftInput() = %+v", in)
	}
	if in.Notes != "line1\nline2" {
		t.Errorf("Notes = %q, control characters should be dropped", in.Notes)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, `{"name":"Bike","type":"Group","goal":150,"price":null}`, "application/json")
	if !p.IsJSON() {
		t.Fatal("JSON body not detected")
	}
	in := p.GiftInput()
	if in.Name != "Bike" || in.Type != "Group" || in.Goal != "150" || in.Price != "" {
		t.Errorf("GiftInput() = %+v", in)
	}
	if p.Get("missing") != "" {
		t.Error("missing key should be empty")
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(`{"name":`))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if err := p.Parse(); err == nil {
		t.Fatal("Parse should keep returning the first error")
	}

	req = httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader("name="+strings.Repeat("x", maxBodyBytes+1)))
	p = NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	p := newParser(t, "", "application/x-www-form-urlencoded")
	if p.Get("name") != "" {
		t.Error("empty body should yield empty values")
	}
}

func TestParsePrefill(t *testing.T) {
	got := ParsePrefill(url.Values{"action": {"add"}, "name": {" Lamp "}, "price": {"19.99"}, "link": {"https://shop.example/lamp"}})
	if !got.Open || got.Name != "Lamp" || got.Price != "19.99" || got.Link != "https://shop.example/lamp" {
		t.Errorf("ParsePrefill() = %+v", got)
	}
	if ParsePrefill(url.Values{"name": {"Lamp"}}).Open {
		t.Error("prefill without action=add should stay closed")
	}
}
