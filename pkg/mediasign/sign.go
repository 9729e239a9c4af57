// Package mediasign issues the credentials a client needs for a direct
// upload to the external media host. The server never touches media bytes;
// it only signs the upload request parameters and hands out a short-lived
// grant token.
package mediasign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Signer struct {
	cloud    string
	apiKey   string
	secret   []byte
	grantTTL time.Duration
}

func New(cloud, apiKey, apiSecret string, grantTTL time.Duration) *Signer {
	return &Signer{cloud: cloud, apiKey: apiKey, secret: []byte(apiSecret), grantTTL: grantTTL}
}

// SignParams computes the upload signature: params serialized as k=v pairs in
// key order, joined with &, HMAC-SHA256 under the API secret, hex encoded.
func (s *Signer) SignParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Grant returns a short-lived token the media host can verify before
// accepting the upload.
func (s *Signer) Grant(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   "upload",
		"cloud": s.cloud,
		"iat":   now.Unix(),
		"exp":   now.Add(s.grantTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Ticket is the full response for one upload request.
type Ticket struct {
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature"`
	CloudName  string `json:"cloud_name"`
	APIKey     string `json:"api_key"`
	GrantToken string `json:"grant_token"`
}

// Issue signs the timestamp-only parameter set and bundles the grant.
func (s *Signer) Issue(now time.Time) (Ticket, error) {
	ts := now.Unix()
	grant, err := s.Grant(now)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{
		Timestamp:  ts,
		Signature:  s.SignParams(map[string]string{"timestamp": fmt.Sprintf("%d", ts)}),
		CloudName:  s.cloud,
		APIKey:     s.apiKey,
		GrantToken: grant,
	}, nil
}
