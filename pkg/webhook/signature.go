package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the replay window for timestamped signatures.
const DefaultTolerance = 5 * time.Minute

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignTimestamped returns the hex HMAC-SHA256 of "timestamp.payload".
// Binding the timestamp into the digest is what makes the replay window enforceable.
func SignTimestamped(secret string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a raw hex HMAC-SHA256 signature over payload.
// Comparison is constant-time.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrMalformedHeader)
	}
	if !equalHex(Sign(secret, payload), signature) {
		return ErrSignatureMismatch
	}
	return nil
}

// TimestampedHeader is a parsed "t=<unix>,v1=<hex>[,v1=<hex>...]" header.
// Several v1 entries appear while a secret is being rotated.
type TimestampedHeader struct {
	Timestamp  int64
	Signatures []string
}

// String formats the header the way it is sent on the wire.
func (h TimestampedHeader) String() string {
	var b strings.Builder
	b.WriteString("t=")
	b.WriteString(strconv.FormatInt(h.Timestamp, 10))
	for _, sig := range h.Signatures {
		b.WriteString(",v1=")
		b.WriteString(sig)
	}
	return b.String()
}

// NewTimestampedHeader signs payload at the given time and returns the header.
func NewTimestampedHeader(secret string, payload []byte, at time.Time) (TimestampedHeader, error) {
	if secret == "" {
		return TimestampedHeader{}, ErrMissingSecret
	}
	if len(payload) == 0 {
		return TimestampedHeader{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	ts := at.Unix()
	return TimestampedHeader{
		Timestamp:  ts,
		Signatures: []string{SignTimestamped(secret, ts, payload)},
	}, nil
}

// ParseTimestampedHeader parses a "t=...,v1=..." header.
// Unknown keys (v0, future schemes) are ignored.
func ParseTimestampedHeader(header string) (TimestampedHeader, error) {
	var h TimestampedHeader
	if strings.TrimSpace(header) == "" {
		return h, fmt.Errorf("%w: header is empty", ErrMalformedHeader)
	}

	for part := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return TimestampedHeader{}, fmt.Errorf("%w: invalid pair %q", ErrMalformedHeader, part)
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return TimestampedHeader{}, fmt.Errorf("%w: invalid timestamp", ErrMalformedHeader)
			}
			h.Timestamp = ts
		case "v1":
			if value != "" {
				h.Signatures = append(h.Signatures, value)
			}
		}
	}

	if h.Timestamp == 0 || len(h.Signatures) == 0 {
		return TimestampedHeader{}, fmt.Errorf("%w: missing timestamp or signature", ErrMalformedHeader)
	}
	return h, nil
}

// VerifyTimestamped checks a "t=...,v1=..." header against payload.
// A non-positive tolerance disables the replay window check.
func VerifyTimestamped(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	h, err := ParseTimestampedHeader(header)
	if err != nil {
		return err
	}

	expected := SignTimestamped(secret, h.Timestamp, payload)
	matched := false
	for _, sig := range h.Signatures {
		if equalHex(expected, sig) {
			matched = true
		}
	}
	if !matched {
		return ErrSignatureMismatch
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(h.Timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: age %s", ErrTimestampOutOfRange, age.Round(time.Second))
		}
	}
	return nil
}

func equalHex(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(got))))
}
