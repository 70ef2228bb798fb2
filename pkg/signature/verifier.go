// Package signature verifies the authenticity of inbound webhooks, one
// verifier per external platform. Verifiers are selected once at startup
// through a registry keyed by platform name.
package signature

import (
	"log"
	"net/http"

	"github.com/ethanbaker/clubsync/pkg/syncerr"
	"github.com/ethanbaker/clubsync/pkg/utils"
)

// Result reports how a payload was authenticated
type Result int

const (
	// ResultVerified means the signature was checked and is valid
	ResultVerified Result = iota

	// ResultSkipped means verification was not possible (no secret
	// configured, or the platform publishes no signature) and the payload is
	// accepted in a degraded, observable mode
	ResultSkipped
)

// Verifier checks one platform's webhook authenticity scheme
type Verifier interface {
	// Verify inspects the raw body and request headers. A nil error with
	// ResultSkipped means degraded acceptance, not success.
	Verify(body []byte, headers http.Header) (Result, error)
}

// Registry holds the per-platform verifiers, built once at startup
type Registry struct {
	verifiers map[string]Verifier
}

// NewRegistry builds verifiers for every platform from configuration.
// Platforms with a missing secret degrade to skipped verification with a
// loud warning so the degraded mode is observable in logs.
func NewRegistry(cfg *utils.Config) *Registry {
	r := &Registry{verifiers: make(map[string]Verifier)}

	// Ticketing publishes no signature; authenticity is a configuration
	// presence check plus the challenge handshake at subscription time
	r.verifiers["ticketing"] = &ticketingVerifier{
		configured: cfg.Get("TICKETING_API_TOKEN") != "",
	}

	r.verifiers["patronage"] = newHMACMD5Verifier("patronage",
		cfg.Get("PATRONAGE_WEBHOOK_SECRET"), "X-Patronage-Signature")

	r.verifiers["email-marketing"] = newHMACSHA256Verifier("email-marketing",
		cfg.Get("MAILER_WEBHOOK_SECRET"), "X-Mailer-Signature")

	r.verifiers["chat-community"] = newEd25519Verifier("chat-community",
		cfg.Get("CHAT_PUBLIC_KEY"))

	return r
}

// Verify dispatches to the platform's verifier
func (r *Registry) Verify(platform string, body []byte, headers http.Header) (Result, error) {
	v, ok := r.verifiers[platform]
	if !ok {
		return 0, &syncerr.UnknownPlatformError{Platform: platform}
	}

	return v.Verify(body, headers)
}

// warnSkipped logs the degraded-verification warning once per call site
func warnSkipped(platform, reason string) {
	log.Printf("[SIGNATURE]: Warning, %s webhook verification skipped: %s", platform, reason)
}
