package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"10000000000000", MaxCents, true},
		{"-10000000000000", -MaxCents, true},
		{"10000000000000.01", 0, false},
		{"1e20", 0, false},
		{"92233720368547758.08", 0, false},
		{"100000000000000000", 0, false},
		{"-1e20", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyJSON_RejectsOverflow(t *testing.T) {
	var in struct {
		A Money `json:"a"`
	}
	for _, body := range []string{`{"a": 1e20}`, `{"a": "92233720368547758.08"}`} {
		if err := json.Unmarshal([]byte(body), &in); err == nil {
			t.Errorf("%s: expected error, got %d cents", body, in.A.Cents)
		}
	}
}

func TestFromFloat(t *testing.T) {
	if got := FromFloat(100.0); got.Cents != 10000 {
		t.Fatalf("expected 10000, got %d", got.Cents)
	}
	if got := FromFloat(0.1 + 0.2); got.Cents != 30 {
		t.Fatalf("expected 30, got %d", got.Cents)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Cents(15000)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":150.00}` {
		t.Fatalf("unexpected json %s", b)
	}

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7,25"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.Cents != 1250 || in.B.Cents != 725 {
		t.Fatalf("unexpected values %d %d", in.A.Cents, in.B.Cents)
	}
}

func TestMoneyFormat(t *testing.T) {
	if got := Cents(15000).Format("USD"); got != "$150.00" {
		t.Fatalf("expected $150.00, got %s", got)
	}
	if got := Cents(-250).String(); got != "-2.50" {
		t.Fatalf("expected -2.50, got %s", got)
	}
}
