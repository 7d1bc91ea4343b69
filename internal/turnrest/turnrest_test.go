package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestNewMinter_Validation(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		prefix string
		ttl    time.Duration
	}{
		{"empty secret", "", "meet", time.Hour},
		{"zero ttl", "s3cret", "meet", 0},
		{"negative ttl", "s3cret", "meet", -time.Minute},
		{"empty prefix", "s3cret", "", time.Hour},
		{"colon in prefix", "s3cret", "a:b", time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewMinter(tc.secret, tc.prefix, tc.ttl); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMint_CoturnCompatible(t *testing.T) {
	m, err := NewMinter("s3cret", "meet", time.Hour)
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	m.random = func() (string, error) { return "abc123", nil }

	creds, err := m.Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	wantUser := "1700003600:meet:abc123"
	if creds.Username != wantUser {
		t.Fatalf("username = %q, want %q", creds.Username, wantUser)
	}
	if creds.ExpiryUnix != 1_700_003_600 {
		t.Fatalf("expiry = %d", creds.ExpiryUnix)
	}

	mac := hmac.New(sha1.New, []byte("s3cret"))
	mac.Write([]byte(wantUser))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if creds.Credential != want {
		t.Fatalf("credential = %q, want %q", creds.Credential, want)
	}
}

func TestMint_RandomSuffixVaries(t *testing.T) {
	m, err := NewMinter("s3cret", "meet", time.Hour)
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}

	a, err := m.Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	b, err := m.Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if a.Username == b.Username {
		t.Fatal("usernames should differ between mints")
	}
	if !strings.HasPrefix(a.Username[strings.Index(a.Username, ":")+1:], "meet:") {
		t.Fatalf("username %q missing prefix segment", a.Username)
	}
}
