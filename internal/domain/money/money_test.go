package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr error
	}{
		{in: "100", want: 10000},
		{in: "12.5", want: 1250},
		{in: "0.01", want: 1},
		{in: " 5000.00 ", want: 500000},
		{in: "-3.20", want: -320},
		{in: "1.005", wantErr: ErrTooPrecise},
		{in: "", wantErr: ErrInvalidAmount},
		{in: "abc", wantErr: ErrInvalidAmount},
		{in: "92233720368547758.07", want: math.MaxInt64},
		{in: "92233720368547758.08", wantErr: ErrInvalidAmount},
		{in: "184467440737095516.17", wantErr: ErrInvalidAmount},
		{in: "-92233720368547758.08", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) err = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got, err := Sum(1250, 750, -100)
	if err != nil || got != 1900 {
		t.Errorf("Sum = %d, %v; want 1900", got, err)
	}

	half := MustParse("50000000000000000")
	if _, err := Sum(half, half); !errors.Is(err, ErrOverflow) {
		t.Errorf("Sum overflow err = %v", err)
	}
	if _, err := Add(math.MinInt64, -1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Add underflow err = %v", err)
	}
	if got, err := Add(math.MaxInt64, -1); err != nil || got != math.MaxInt64-1 {
		t.Errorf("Add = %d, %v", got, err)
	}
}

func TestString(t *testing.T) {
	cases := map[Cents]string{
		0:      "0.00",
		1:      "0.01",
		1250:   "12.50",
		500000: "5000.00",
		-75:    "-0.75",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Errorf("Cents(%d).String() = %q, want %q", int64(c), got, want)
		}
	}
}

func TestJSON(t *testing.T) {
	type body struct {
		Amount Cents `json:"amount"`
	}

	b, err := json.Marshal(body{Amount: 1999})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":19.99}` {
		t.Errorf("marshal = %s", b)
	}

	for _, in := range []string{`{"amount":19.99}`, `{"amount":"19.99"}`} {
		var got body
		if err := json.Unmarshal([]byte(in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if got.Amount != 1999 {
			t.Errorf("unmarshal %s = %d, want 1999", in, got.Amount)
		}
	}

	var bad body
	if err := json.Unmarshal([]byte(`{"amount":1.999}`), &bad); err == nil {
		t.Error("expected error for three decimal places")
	}
}
