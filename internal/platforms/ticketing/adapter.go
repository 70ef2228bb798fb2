// Package ticketing adapts the ticketing platform (orders, attendees,
// check-ins) to the canonical member/event model.
package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/attendance"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// webhookPayload is the envelope the ticketing platform posts. The action
// names the change; orders embed the event and its attendees.
type webhookPayload struct {
	Action string `json:"action"`
	Order  *struct {
		ID        string     `json:"id"`
		Event     *EventInfo `json:"event"`
		Attendees []Attendee `json:"attendees"`
	} `json:"order,omitempty"`
	Attendee *Attendee `json:"attendee,omitempty"`
}

// Adapter synchronizes ticketing attendees into canonical members and
// attendance records
type Adapter struct {
	client      *Client
	resolver    *platforms.Resolver
	limiter     *ratelimit.Limiter
	attendances attendance.Store
}

// NewAdapter creates the ticketing adapter
func NewAdapter(client *Client, resolver *platforms.Resolver, limiter *ratelimit.Limiter, attendances attendance.Store) *Adapter {
	return &Adapter{
		client:      client,
		resolver:    resolver,
		limiter:     limiter,
		attendances: attendances,
	}
}

// Platform returns the platform this adapter serves
func (a *Adapter) Platform() platforms.Platform {
	return platforms.PlatformTicketing
}

// HandleWebhook processes one verified ticketing webhook
func (a *Adapter) HandleWebhook(ctx context.Context, _ string, payload []byte) (*platforms.SyncResult, error) {
	var wh webhookPayload
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, &syncerr.ValidationError{Platform: "ticketing", Reason: err.Error()}
	}

	switch wh.Action {
	case "order.placed", "order.updated":
		return a.handleOrder(ctx, &wh)

	case "attendee.updated":
		if wh.Attendee == nil {
			return nil, &syncerr.ValidationError{Platform: "ticketing", Reason: "attendee.updated without attendee"}
		}
		m, err := a.SyncOne(ctx, normalizeAttendee(wh.Attendee))
		if err != nil {
			return nil, err
		}
		return &platforms.SyncResult{MemberID: m.ID, ExternalID: wh.Attendee.ID, Action: "synced"}, nil

	case "attendee.checked_in":
		if wh.Attendee == nil {
			return nil, &syncerr.ValidationError{Platform: "ticketing", Reason: "attendee.checked_in without attendee"}
		}
		return a.handleCheckIn(ctx, wh.Attendee)

	default:
		log.Printf("[TICKETING]: Ignoring webhook action '%s'", wh.Action)
		return &platforms.SyncResult{Action: "ignored"}, nil
	}
}

// handleOrder syncs every attendee on an order and records attendance
// against the order's event. Redelivery of the same order upserts and leaves
// all counts unchanged.
func (a *Adapter) handleOrder(ctx context.Context, wh *webhookPayload) (*platforms.SyncResult, error) {
	if wh.Order == nil || len(wh.Order.Attendees) == 0 {
		return nil, &syncerr.ValidationError{Platform: "ticketing", Reason: "order without attendees"}
	}

	var ev *attendance.Event
	if wh.Order.Event != nil {
		var err error
		ev, err = a.attendances.FindOrCreateEvent(ctx, wh.Order.Event.ID, wh.Order.Event.Name, wh.Order.Event.StartsAt)
		if err != nil {
			return nil, &syncerr.PersistenceError{Op: "event upsert", Err: err}
		}
	}

	result := &platforms.SyncResult{Action: "synced"}
	for i := range wh.Order.Attendees {
		att := &wh.Order.Attendees[i]

		m, err := a.SyncOne(ctx, normalizeAttendee(att))
		if err != nil {
			return nil, err
		}

		if ev != nil {
			if _, err := a.attendances.UpsertAttendance(ctx, ev.ID, m.ID, att.ID); err != nil {
				return nil, &syncerr.PersistenceError{Op: "attendance upsert", Err: err}
			}
		}

		result.MemberID = m.ID
		result.ExternalID = att.ID
	}

	return result, nil
}

// handleCheckIn marks the local attendance row checked in
func (a *Adapter) handleCheckIn(ctx context.Context, att *Attendee) (*platforms.SyncResult, error) {
	m, err := a.SyncOne(ctx, normalizeAttendee(att))
	if err != nil {
		return nil, err
	}

	if att.EventID != "" {
		ev, err := a.attendances.FindOrCreateEvent(ctx, att.EventID, "", time.Time{})
		if err != nil {
			return nil, &syncerr.PersistenceError{Op: "event lookup", Err: err}
		}
		if _, err := a.attendances.UpsertAttendance(ctx, ev.ID, m.ID, att.ID); err != nil {
			return nil, &syncerr.PersistenceError{Op: "attendance upsert", Err: err}
		}
		if err := a.attendances.MarkCheckedIn(ctx, ev.ID, m.ID); err != nil {
			return nil, &syncerr.PersistenceError{Op: "attendance check-in", Err: err}
		}
	}

	return &platforms.SyncResult{MemberID: m.ID, ExternalID: att.ID, Action: "synced"}, nil
}

// SyncOne resolves a single normalized attendee into a member
func (a *Adapter) SyncOne(ctx context.Context, rec *platforms.ExternalRecord) (*member.Member, error) {
	return a.resolver.Resolve(ctx, platforms.PlatformTicketing, rec)
}

// BulkSync paginates through the attendee listing, optionally scoped to an
// organizer id. Page fetches are rate-limited; records on a page are
// processed by a bounded worker pool.
func (a *Adapter) BulkSync(ctx context.Context, scope string) (*platforms.BulkResult, error) {
	result := &platforms.BulkResult{}

	page := 1
	for {
		var attendees []Attendee
		var hasMore bool

		err := a.limiter.Do(ctx, string(platforms.PlatformTicketing), func(ctx context.Context) error {
			var err error
			attendees, hasMore, err = a.client.ListAttendees(ctx, scope, page)
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to fetch attendee page %d: %w", page, err)
		}

		recs := make([]*platforms.ExternalRecord, len(attendees))
		for i := range attendees {
			recs[i] = normalizeAttendee(&attendees[i])
		}

		synced, failed := platforms.ProcessRecords(ctx, platforms.PlatformTicketing, platforms.DefaultBulkWorkers, recs,
			func(ctx context.Context, rec *platforms.ExternalRecord) error {
				_, err := a.SyncOne(ctx, rec)
				return err
			})
		result.Synced += synced
		result.Errors += failed

		if !hasMore || ctx.Err() != nil {
			break
		}
		page++
	}

	return result, nil
}

// FetchRecord re-fetches an attendee's current state for drift detection
func (a *Adapter) FetchRecord(ctx context.Context, externalID string) (*platforms.ExternalRecord, error) {
	var att *Attendee

	err := a.limiter.Do(ctx, string(platforms.PlatformTicketing), func(ctx context.Context) error {
		var err error
		att, err = a.client.GetAttendee(ctx, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return normalizeAttendee(att), nil
}

// CheckIn marks an attendee checked in on the external platform, a
// rate-limited side effect independent of record syncing
func (a *Adapter) CheckIn(ctx context.Context, attendeeID string) error {
	return a.limiter.Do(ctx, string(platforms.PlatformTicketing), func(ctx context.Context) error {
		return a.client.CheckInAttendee(ctx, attendeeID)
	})
}

// normalizeAttendee maps a platform attendee into the canonical record shape
func normalizeAttendee(att *Attendee) *platforms.ExternalRecord {
	return &platforms.ExternalRecord{
		ExternalID: att.ID,
		FirstName:  att.Profile.FirstName,
		LastName:   att.Profile.LastName,
		Email:      att.Profile.Email,
		Metadata: map[string]any{
			"event_id":     att.EventID,
			"ticket_class": att.TicketClass,
			"status":       att.Status,
			"checked_in":   att.CheckedIn,
		},
	}
}
