package signature

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// ticketingVerifier accepts payloads when the platform is configured at all.
// The ticketing platform signs nothing; the subscription handshake (challenge
// echo) is the only authenticity step it offers.
type ticketingVerifier struct {
	configured bool
}

func (v *ticketingVerifier) Verify(_ []byte, _ http.Header) (Result, error) {
	if !v.configured {
		warnSkipped("ticketing", "TICKETING_API_TOKEN not configured")
		return ResultSkipped, nil
	}

	return ResultSkipped, nil
}

// hmacMD5Verifier checks a hex-encoded HMAC-MD5 over the raw body
type hmacMD5Verifier struct {
	platform string
	secret   []byte
	header   string
}

func newHMACMD5Verifier(platform, secret, header string) *hmacMD5Verifier {
	return &hmacMD5Verifier{platform: platform, secret: []byte(secret), header: header}
}

func (v *hmacMD5Verifier) Verify(body []byte, headers http.Header) (Result, error) {
	if len(v.secret) == 0 {
		warnSkipped(v.platform, "webhook secret not configured")
		return ResultSkipped, nil
	}

	provided := headers.Get(v.header)
	if provided == "" {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "missing " + v.header + " header"}
	}

	mac := hmac.New(md5.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "signature mismatch"}
	}

	return ResultVerified, nil
}

// hmacSHA256Verifier checks a base64-encoded HMAC-SHA256 over the raw body
type hmacSHA256Verifier struct {
	platform string
	secret   []byte
	header   string
}

func newHMACSHA256Verifier(platform, secret, header string) *hmacSHA256Verifier {
	return &hmacSHA256Verifier{platform: platform, secret: []byte(secret), header: header}
}

func (v *hmacSHA256Verifier) Verify(body []byte, headers http.Header) (Result, error) {
	if len(v.secret) == 0 {
		warnSkipped(v.platform, "webhook secret not configured")
		return ResultSkipped, nil
	}

	provided := headers.Get(v.header)
	if provided == "" {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "missing " + v.header + " header"}
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "signature mismatch"}
	}

	return ResultVerified, nil
}

// ed25519Verifier checks the chat platform's asymmetric signature over
// timestamp + body. Requests without both signature headers are rejected.
type ed25519Verifier struct {
	platform  string
	publicKey ed25519.PublicKey
}

func newEd25519Verifier(platform, hexKey string) *ed25519Verifier {
	v := &ed25519Verifier{platform: platform}

	if hexKey != "" {
		if key, err := hex.DecodeString(hexKey); err == nil && len(key) == ed25519.PublicKeySize {
			v.publicKey = ed25519.PublicKey(key)
		}
	}

	return v
}

func (v *ed25519Verifier) Verify(body []byte, headers http.Header) (Result, error) {
	if v.publicKey == nil {
		warnSkipped(v.platform, "CHAT_PUBLIC_KEY not configured or invalid")
		return ResultSkipped, nil
	}

	sigHex := headers.Get("X-Signature-Ed25519")
	timestamp := headers.Get("X-Signature-Timestamp")
	if sigHex == "" || timestamp == "" {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "missing signature headers"}
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "malformed signature"}
	}

	signed := append([]byte(timestamp), body...)
	if !ed25519.Verify(v.publicKey, signed, sig) {
		return 0, &syncerr.SignatureError{Platform: v.platform, Reason: "signature mismatch"}
	}

	return ResultVerified, nil
}
