package ticketing

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
	"github.com/ethanbaker/clubsync/internal/stores/attendance"
	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStores struct {
	members      *member.InMemoryStore
	integrations *integration.InMemoryStore
	attendances  *attendance.InMemoryStore
}

func newTestAdapter(serverURL string) (*Adapter, *testStores) {
	st := &testStores{
		members:      member.NewInMemoryStore(),
		integrations: integration.NewInMemoryStore(),
		attendances:  attendance.NewInMemoryStore(),
	}

	limiter := ratelimit.NewLimiterWithLimits(map[string]ratelimit.Limits{
		"ticketing": {Limit: 1000, Window: time.Hour},
	}, 1, time.Millisecond)

	adapter := NewAdapter(
		NewClient(serverURL, "test-token"),
		platforms.NewResolver(st.members, st.integrations),
		limiter,
		st.attendances,
	)

	return adapter, st
}

func orderPayload(orderID string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"action": "order.placed",
		"order": map[string]any{
			"id": orderID,
			"event": map[string]any{
				"id":        "ev-100",
				"name":      "Monthly Meetup",
				"starts_at": "2026-09-01T18:00:00Z",
			},
			"attendees": []map[string]any{
				{
					"id":       "att-1",
					"event_id": "ev-100",
					"profile":  map[string]any{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com"},
				},
				{
					"id":       "att-2",
					"event_id": "ev-100",
					"profile":  map[string]any{"first_name": "Alan", "last_name": "Turing", "email": "alan@example.com"},
				},
			},
		},
	})
	return payload
}

func TestHandleWebhook(t *testing.T) {
	t.Run("OrderPlacedSyncsAttendeesAndAttendance", func(t *testing.T) {
		adapter, st := newTestAdapter("http://unused.local")

		result, err := adapter.HandleWebhook(context.Background(), "", orderPayload("order-1"))
		require.NoError(t, err)
		assert.Equal(t, "synced", result.Action)

		assert.Equal(t, 2, st.members.Count())
		assert.Equal(t, 2, st.integrations.Count())
		assert.Equal(t, 1, st.attendances.EventCount())
		assert.Equal(t, 2, st.attendances.AttendanceCount())

		// Members resolve by email with their integrations linked
		m, err := st.members.FindByEmail(context.Background(), "ada@example.com")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "Ada", m.FirstName)

		link, err := st.integrations.FindByExternal(context.Background(), "ticketing", "att-1")
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, m.ID, link.MemberID)
		assert.NotEmpty(t, link.ContentHash)
	})

	t.Run("RedeliveryIsIdempotent", func(t *testing.T) {
		adapter, st := newTestAdapter("http://unused.local")

		_, err := adapter.HandleWebhook(context.Background(), "", orderPayload("order-1"))
		require.NoError(t, err)

		_, err = adapter.HandleWebhook(context.Background(), "", orderPayload("order-1"))
		require.NoError(t, err)

		assert.Equal(t, 2, st.members.Count())
		assert.Equal(t, 2, st.integrations.Count())
		assert.Equal(t, 1, st.attendances.EventCount())
		assert.Equal(t, 2, st.attendances.AttendanceCount())
	})

	t.Run("AttendeeUpdatedSyncsOneRecord", func(t *testing.T) {
		adapter, st := newTestAdapter("http://unused.local")

		payload, _ := json.Marshal(map[string]any{
			"action": "attendee.updated",
			"attendee": map[string]any{
				"id":      "att-9",
				"profile": map[string]any{"first_name": "Grace", "last_name": "Hopper", "email": "grace@example.com"},
			},
		})

		result, err := adapter.HandleWebhook(context.Background(), "", payload)
		require.NoError(t, err)
		assert.Equal(t, "att-9", result.ExternalID)
		assert.Equal(t, 1, st.members.Count())
	})

	t.Run("CheckInRecordsAttendance", func(t *testing.T) {
		adapter, st := newTestAdapter("http://unused.local")

		payload, _ := json.Marshal(map[string]any{
			"action": "attendee.checked_in",
			"attendee": map[string]any{
				"id":         "att-1",
				"event_id":   "ev-100",
				"checked_in": true,
				"profile":    map[string]any{"first_name": "Ada", "email": "ada@example.com"},
			},
		})

		result, err := adapter.HandleWebhook(context.Background(), "", payload)
		require.NoError(t, err)
		assert.NotZero(t, result.MemberID)
		assert.Equal(t, 1, st.attendances.EventCount())
		assert.Equal(t, 1, st.attendances.AttendanceCount())
	})

	t.Run("UnknownActionIsIgnored", func(t *testing.T) {
		adapter, st := newTestAdapter("http://unused.local")

		result, err := adapter.HandleWebhook(context.Background(), "", []byte(`{"action":"event.published"}`))
		require.NoError(t, err)
		assert.Equal(t, "ignored", result.Action)
		assert.Equal(t, 0, st.members.Count())
	})

	t.Run("MalformedPayloadFailsValidation", func(t *testing.T) {
		adapter, _ := newTestAdapter("http://unused.local")

		_, err := adapter.HandleWebhook(context.Background(), "", []byte(`not json`))
		require.Error(t, err)

		var vErr *syncerr.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("OrderWithoutAttendeesFailsValidation", func(t *testing.T) {
		adapter, _ := newTestAdapter("http://unused.local")

		_, err := adapter.HandleWebhook(context.Background(), "", []byte(`{"action":"order.placed","order":{"id":"o1"}}`))
		require.Error(t, err)
	})
}

func TestBulkSync(t *testing.T) {
	const pages = 3
	const perPage = 10

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		result := AttendeePage{}
		result.Pagination.Page = page
		result.Pagination.PageCount = pages
		for i := 0; i < perPage; i++ {
			n := (page-1)*perPage + i
			result.Attendees = append(result.Attendees, Attendee{
				ID: fmt.Sprintf("att-%d", n),
				Profile: Profile{
					FirstName: fmt.Sprintf("First%d", n),
					Email:     fmt.Sprintf("attendee%d@example.com", n),
				},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}))
	defer server.Close()

	adapter, st := newTestAdapter(server.URL)

	result, err := adapter.BulkSync(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, pages*perPage, result.Synced)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, pages*perPage, st.members.Count())
	assert.Equal(t, pages*perPage, st.integrations.Count())
}

func TestFetchRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Attendee{
			ID:      "att-5",
			EventID: "ev-100",
			Profile: Profile{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		})
	}))
	defer server.Close()

	adapter, _ := newTestAdapter(server.URL)

	rec, err := adapter.FetchRecord(context.Background(), "att-5")
	require.NoError(t, err)
	assert.Equal(t, "att-5", rec.ExternalID)
	assert.Equal(t, "ada@example.com", rec.Email)
}
