package api

import (
	"testing"
	"time"
)

func TestExpiryFromToken(t *testing.T) {
	exp := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)
	tok := signedToken(t, exp)

	got, ok := ExpiryFromToken(tok)
	if !ok {
		t.Fatal("expected expiry")
	}
	if got.UnixMilli() != exp.Unix()*1000 {
		t.Errorf("got %d ms, want %d", got.UnixMilli(), exp.Unix()*1000)
	}

	if _, ok := ExpiryFromToken(signedToken(t, time.Time{})); ok {
		t.Error("token without exp should report no expiry")
	}
	if _, ok := ExpiryFromToken("not.a.jwt"); ok {
		t.Error("malformed token should report no expiry")
	}
}

func TestParseServerExpiry(t *testing.T) {
	tests := []struct {
		raw    string
		wantMs int64
		ok     bool
	}{
		{`1700000000000`, 1700000000000, true},
		{`1700000000`, 1700000000000, true},
		{`"1700000000"`, 1700000000000, true},
		{`null`, 0, false},
		{``, 0, false},
		{`0`, 0, false},
		{`"soon"`, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseServerTime([]byte(tt.raw))
		if ok != tt.ok || (ok && got.UnixMilli() != tt.wantMs) {
			t.Errorf("parseServerTime(%s) = %d, %v; want %d, %v", tt.raw, got.UnixMilli(), ok, tt.wantMs, tt.ok)
		}
	}
}
