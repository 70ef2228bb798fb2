package signature_test

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/ethanbaker/clubsync/pkg/signature"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
	"github.com/ethanbaker/clubsync/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMD5(secret string, body []byte) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestPatronageHMACMD5(t *testing.T) {
	cfg := utils.NewConfig(map[string]string{
		"PATRONAGE_WEBHOOK_SECRET": "topsecret",
	})
	registry := signature.NewRegistry(cfg)

	body := []byte(`{"data":{"id":"p1"}}`)

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Patronage-Signature", signMD5("topsecret", body))

		result, err := registry.Verify("patronage", body, headers)
		require.NoError(t, err)
		assert.Equal(t, signature.ResultVerified, result)
	})

	t.Run("tampered body", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Patronage-Signature", signMD5("topsecret", body))

		_, err := registry.Verify("patronage", []byte(`{"data":{"id":"p2"}}`), headers)
		require.Error(t, err)

		var sigErr *syncerr.SignatureError
		assert.ErrorAs(t, err, &sigErr)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := registry.Verify("patronage", body, http.Header{})
		assert.Error(t, err)
	})
}

func TestMailerHMACSHA256(t *testing.T) {
	cfg := utils.NewConfig(map[string]string{
		"MAILER_WEBHOOK_SECRET": "mailersecret",
	})
	registry := signature.NewRegistry(cfg)

	body := []byte(`{"type":"subscribe","data":{"email":"ada@example.com"}}`)

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Mailer-Signature", signSHA256("mailersecret", body))

		result, err := registry.Verify("email-marketing", body, headers)
		require.NoError(t, err)
		assert.Equal(t, signature.ResultVerified, result)
	})

	t.Run("wrong secret", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Mailer-Signature", signSHA256("wrong", body))

		_, err := registry.Verify("email-marketing", body, headers)
		assert.Error(t, err)
	})
}

func TestChatEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := utils.NewConfig(map[string]string{
		"CHAT_PUBLIC_KEY": hex.EncodeToString(pub),
	})
	registry := signature.NewRegistry(cfg)

	body := []byte(`{"t":"GUILD_MEMBER_ADD","d":{"user":{"id":"42"}}}`)
	timestamp := "1700000000"
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
		headers.Set("X-Signature-Timestamp", timestamp)

		result, err := registry.Verify("chat-community", body, headers)
		require.NoError(t, err)
		assert.Equal(t, signature.ResultVerified, result)
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		_, err := registry.Verify("chat-community", body, http.Header{})
		assert.Error(t, err)
	})

	t.Run("tampered body", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
		headers.Set("X-Signature-Timestamp", timestamp)

		_, err := registry.Verify("chat-community", []byte(`{"t":"GUILD_MEMBER_ADD","d":{"user":{"id":"43"}}}`), headers)
		assert.Error(t, err)
	})
}

func TestMissingSecretDegradesToSkipped(t *testing.T) {
	registry := signature.NewRegistry(utils.NewConfig(nil))

	for _, platform := range []string{"patronage", "email-marketing", "chat-community", "ticketing"} {
		t.Run(platform, func(t *testing.T) {
			result, err := registry.Verify(platform, []byte(`{}`), http.Header{})
			require.NoError(t, err)
			assert.Equal(t, signature.ResultSkipped, result)
		})
	}
}

func TestUnknownPlatform(t *testing.T) {
	registry := signature.NewRegistry(utils.NewConfig(nil))

	_, err := registry.Verify("fax-machine", []byte(`{}`), http.Header{})
	require.Error(t, err)

	var unknownErr *syncerr.UnknownPlatformError
	assert.ErrorAs(t, err, &unknownErr)
}
