// Package mailer adapts the email-marketing platform (audience lists,
// subscribers, tags) to the canonical member model.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// pageSize for offset pagination of list members
const pageSize = 100

// webhookPayload is the email-marketing webhook body; the type field names
// the change
type webhookPayload struct {
	Type string `json:"type"` // subscribe, unsubscribe, profile, cleaned
	Data struct {
		ID     string `json:"id"`
		ListID string `json:"list_id"`
		Email  string `json:"email"`
		Merges struct {
			FirstName string `json:"FNAME"`
			LastName  string `json:"LNAME"`
		} `json:"merges"`
	} `json:"data"`
}

// Adapter synchronizes mailing-list subscribers into canonical members
type Adapter struct {
	client   *Client
	resolver *platforms.Resolver
	limiter  *ratelimit.Limiter
	listID   string
}

// NewAdapter creates the email-marketing adapter. listID scopes bulk syncs
// when no explicit scope is passed.
func NewAdapter(client *Client, resolver *platforms.Resolver, limiter *ratelimit.Limiter, listID string) *Adapter {
	return &Adapter{
		client:   client,
		resolver: resolver,
		limiter:  limiter,
		listID:   listID,
	}
}

// Platform returns the platform this adapter serves
func (a *Adapter) Platform() platforms.Platform {
	return platforms.PlatformEmailMarketing
}

// HandleWebhook processes one verified email-marketing webhook
func (a *Adapter) HandleWebhook(ctx context.Context, _ string, payload []byte) (*platforms.SyncResult, error) {
	var wh webhookPayload
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, &syncerr.ValidationError{Platform: "email-marketing", Reason: err.Error()}
	}
	if wh.Data.ID == "" {
		return nil, &syncerr.ValidationError{Platform: "email-marketing", Reason: "payload has no subscriber id"}
	}

	switch wh.Type {
	case "subscribe", "profile":
		rec := &platforms.ExternalRecord{
			ExternalID: wh.Data.ID,
			FirstName:  wh.Data.Merges.FirstName,
			LastName:   wh.Data.Merges.LastName,
			Email:      wh.Data.Email,
			Metadata: map[string]any{
				"list_id": wh.Data.ListID,
				"status":  "subscribed",
			},
		}
		m, err := a.SyncOne(ctx, rec)
		if err != nil {
			return nil, err
		}
		return &platforms.SyncResult{MemberID: m.ID, ExternalID: wh.Data.ID, Action: "synced"}, nil

	case "unsubscribe", "cleaned":
		if err := a.resolver.Deactivate(ctx, platforms.PlatformEmailMarketing, wh.Data.ID); err != nil {
			return nil, err
		}
		return &platforms.SyncResult{ExternalID: wh.Data.ID, Action: "deactivated"}, nil

	default:
		log.Printf("[MAILER]: Ignoring webhook type '%s'", wh.Type)
		return &platforms.SyncResult{Action: "ignored"}, nil
	}
}

// SyncOne resolves a single normalized subscriber into a member
func (a *Adapter) SyncOne(ctx context.Context, rec *platforms.ExternalRecord) (*member.Member, error) {
	return a.resolver.Resolve(ctx, platforms.PlatformEmailMarketing, rec)
}

// BulkSync walks the list membership by offset. Each page fetch is
// rate-limited; per-record failures are isolated.
func (a *Adapter) BulkSync(ctx context.Context, scope string) (*platforms.BulkResult, error) {
	listID := scope
	if listID == "" {
		listID = a.listID
	}
	if listID == "" {
		return nil, fmt.Errorf("no mailing list configured")
	}

	result := &platforms.BulkResult{}

	offset := 0
	for {
		var subs []Subscriber
		var hasMore bool

		err := a.limiter.Do(ctx, string(platforms.PlatformEmailMarketing), func(ctx context.Context) error {
			var err error
			subs, hasMore, err = a.client.ListSubscribers(ctx, listID, offset, pageSize)
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to fetch subscriber page at offset %d: %w", offset, err)
		}

		recs := make([]*platforms.ExternalRecord, len(subs))
		for i := range subs {
			recs[i] = normalizeSubscriber(&subs[i], listID)
		}

		synced, failed := platforms.ProcessRecords(ctx, platforms.PlatformEmailMarketing, platforms.DefaultBulkWorkers, recs,
			func(ctx context.Context, rec *platforms.ExternalRecord) error {
				_, err := a.SyncOne(ctx, rec)
				return err
			})
		result.Synced += synced
		result.Errors += failed

		if !hasMore || ctx.Err() != nil {
			break
		}
		offset += pageSize
	}

	return result, nil
}

// FetchRecord re-fetches a subscriber's current state for drift detection
func (a *Adapter) FetchRecord(ctx context.Context, externalID string) (*platforms.ExternalRecord, error) {
	var sub *Subscriber

	err := a.limiter.Do(ctx, string(platforms.PlatformEmailMarketing), func(ctx context.Context) error {
		var err error
		sub, err = a.client.GetSubscriber(ctx, a.listID, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return normalizeSubscriber(sub, a.listID), nil
}

// Tag applies a membership tag to a subscriber on the external platform, a
// rate-limited side effect independent of record syncing
func (a *Adapter) Tag(ctx context.Context, subscriberID, tag string) error {
	return a.limiter.Do(ctx, string(platforms.PlatformEmailMarketing), func(ctx context.Context) error {
		return a.client.TagSubscriber(ctx, a.listID, subscriberID, tag)
	})
}

// normalizeSubscriber maps a list member into the canonical record shape
func normalizeSubscriber(sub *Subscriber, listID string) *platforms.ExternalRecord {
	return &platforms.ExternalRecord{
		ExternalID: sub.ID,
		FirstName:  sub.MergeFields.FirstName,
		LastName:   sub.MergeFields.LastName,
		Email:      sub.EmailAddress,
		Metadata: map[string]any{
			"list_id": listID,
			"status":  sub.Status,
		},
	}
}
