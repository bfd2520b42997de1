package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const SignatureHeader = "Stripe-Signature"

const defaultSignatureTolerance = 5 * time.Minute

// SignatureVerifier checks the `t=<unix>,v1=<hex hmac>` scheme: the digest is
// HMAC-SHA256 over "{timestamp}.{body}" with the per-market signing secret,
// and the signed timestamp must sit within the tolerance window. Verification
// runs against the raw body, before any payload parsing.
type SignatureVerifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func NewSignatureVerifier(secret string, tolerance time.Duration) SignatureVerifier {
	return SignatureVerifier{
		Secret:    strings.TrimSpace(secret),
		Tolerance: tolerance,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (v SignatureVerifier) Verify(_ context.Context, header string, body []byte) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("stripe: signature secret is required")
	}
	timestamp, signatures, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = defaultSignatureTolerance
	}
	delta := now.Sub(time.Unix(timestamp, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > tolerance {
		return fmt.Errorf("stripe: signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		if subtle.ConstantTimeCompare(signature, expected) == 1 {
			return nil
		}
	}
	return fmt.Errorf("stripe: signature verification failed")
}

// ParseSignatureHeader splits the signature header into the signed timestamp
// and the decoded v1 signatures. Multiple v1 entries are legal during secret
// rotation; any one of them may match.
func ParseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, fmt.Errorf("stripe: signature header is required")
	}

	var timestamp int64 = -1
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("stripe: parse signature timestamp: %w", err)
			}
			timestamp = parsed
		case "v1":
			decoded, err := hex.DecodeString(strings.TrimSpace(value))
			if err != nil {
				return 0, nil, fmt.Errorf("stripe: decode hex signature: %w", err)
			}
			signatures = append(signatures, decoded)
		}
	}
	if timestamp < 0 {
		return 0, nil, fmt.Errorf("stripe: signature header is missing timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("stripe: signature header is missing v1 signature")
	}
	return timestamp, signatures, nil
}

// ComputeSignatureHeader produces a header value the verifier accepts; tests
// and outbound simulators use it.
func ComputeSignatureHeader(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	fmt.Fprintf(mac, "%d.", timestamp)
	_, _ = mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
