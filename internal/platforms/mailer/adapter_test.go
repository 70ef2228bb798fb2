package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(serverURL, listID string) (*Adapter, *member.InMemoryStore, *integration.InMemoryStore) {
	members := member.NewInMemoryStore()
	integrations := integration.NewInMemoryStore()

	limiter := ratelimit.NewLimiterWithLimits(map[string]ratelimit.Limits{
		"email-marketing": {Limit: 1000, Window: time.Minute},
	}, 1, time.Millisecond)

	adapter := NewAdapter(
		NewClient(serverURL, "test-key"),
		platforms.NewResolver(members, integrations),
		limiter,
		listID,
	)

	return adapter, members, integrations
}

func subscribePayload(eventType, id, email string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": eventType,
		"data": map[string]any{
			"id":      id,
			"list_id": "list-1",
			"email":   email,
			"merges":  map[string]any{"FNAME": "Ada", "LNAME": "Lovelace"},
		},
	})
	return payload
}

func TestHandleWebhook(t *testing.T) {
	t.Run("SubscribeSyncsSubscriber", func(t *testing.T) {
		adapter, members, integrations := newTestAdapter("http://unused.local", "list-1")

		result, err := adapter.HandleWebhook(context.Background(), "",
			subscribePayload("subscribe", "sub-1", "ada@example.com"))
		require.NoError(t, err)
		assert.Equal(t, "synced", result.Action)

		m, err := members.FindByEmail(context.Background(), "ada@example.com")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "Ada", m.FirstName)
		assert.Equal(t, 1, integrations.Count())
	})

	t.Run("ProfileUpdateFillsGapsOnly", func(t *testing.T) {
		adapter, members, _ := newTestAdapter("http://unused.local", "list-1")

		_, err := adapter.HandleWebhook(context.Background(), "",
			subscribePayload("subscribe", "sub-1", "ada@example.com"))
		require.NoError(t, err)

		// A later profile webhook with a different name never overwrites
		payload, _ := json.Marshal(map[string]any{
			"type": "profile",
			"data": map[string]any{
				"id":      "sub-1",
				"list_id": "list-1",
				"email":   "ada@example.com",
				"merges":  map[string]any{"FNAME": "Adeline", "LNAME": "King"},
			},
		})
		_, err = adapter.HandleWebhook(context.Background(), "", payload)
		require.NoError(t, err)

		m, err := members.FindByEmail(context.Background(), "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada", m.FirstName)
		assert.Equal(t, "Lovelace", m.LastName)
	})

	t.Run("UnsubscribeDeactivatesIntegration", func(t *testing.T) {
		adapter, _, integrations := newTestAdapter("http://unused.local", "list-1")

		_, err := adapter.HandleWebhook(context.Background(), "",
			subscribePayload("subscribe", "sub-1", "ada@example.com"))
		require.NoError(t, err)

		result, err := adapter.HandleWebhook(context.Background(), "",
			subscribePayload("unsubscribe", "sub-1", "ada@example.com"))
		require.NoError(t, err)
		assert.Equal(t, "deactivated", result.Action)

		link, err := integrations.FindByExternal(context.Background(), "email-marketing", "sub-1")
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.False(t, link.IsActive())
	})

	t.Run("MissingSubscriberIDFailsValidation", func(t *testing.T) {
		adapter, _, _ := newTestAdapter("http://unused.local", "list-1")

		_, err := adapter.HandleWebhook(context.Background(), "", []byte(`{"type":"subscribe","data":{}}`))
		require.Error(t, err)
	})
}

func TestBulkSyncOffsetPagination(t *testing.T) {
	const total = 150 // spans two pages at pageSize 100

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))

		page := subscriberPage{TotalItems: total}
		for i := offset; i < offset+count && i < total; i++ {
			page.Members = append(page.Members, Subscriber{
				ID:           fmt.Sprintf("sub-%d", i),
				EmailAddress: fmt.Sprintf("subscriber%d@example.com", i),
				Status:       "subscribed",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	adapter, members, _ := newTestAdapter(server.URL, "list-1")

	result, err := adapter.BulkSync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, total, result.Synced)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, total, members.Count())
}

func TestBulkSyncRequiresList(t *testing.T) {
	adapter, _, _ := newTestAdapter("http://unused.local", "")

	_, err := adapter.BulkSync(context.Background(), "")
	require.Error(t, err)
}
