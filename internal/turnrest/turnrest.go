// Package turnrest mints coturn-compatible ephemeral TURN credentials
// (draft-uberti-behave-turn-rest). Browsers fetch these from the ICE
// bootstrap endpoint before opening the signaling socket, so TURN secrets
// never reach the client.
//
// Scheme:
//
//	username   = <unix_expiry>:<prefix>:<random>
//	credential = base64(hmac_sha1(shared_secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

type Minter struct {
	secret []byte
	ttl    time.Duration
	prefix string

	now    func() time.Time
	random func() (string, error)
}

func NewMinter(sharedSecret, usernamePrefix string, ttl time.Duration) (*Minter, error) {
	if sharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if usernamePrefix == "" || strings.Contains(usernamePrefix, ":") {
		return nil, errors.New("username prefix must be non-empty and contain no ':'")
	}
	return &Minter{
		secret: []byte(sharedSecret),
		ttl:    ttl,
		prefix: usernamePrefix,
		now:    time.Now,
		random: randomSuffix,
	}, nil
}

// Mint issues a fresh credential pair valid for the configured TTL.
func (m *Minter) Mint() (Credentials, error) {
	suffix, err := m.random()
	if err != nil {
		return Credentials{}, err
	}
	expiry := m.now().UTC().Add(m.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, m.prefix, suffix)

	mac := hmac.New(sha1.New, m.secret)
	_, _ = mac.Write([]byte(username))

	return Credentials{
		Username:   username,
		Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		ExpiryUnix: expiry,
	}, nil
}

func randomSuffix() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
