// Package patronage adapts the patronage/membership-billing platform
// (patrons, pledges, tiers) to the canonical member model.
package patronage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// webhookPayload is the patronage webhook body; the triggering event arrives
// separately in the X-Patronage-Event header
type webhookPayload struct {
	Data Patron `json:"data"`
}

// Adapter synchronizes patrons into canonical members
type Adapter struct {
	client     *Client
	resolver   *platforms.Resolver
	limiter    *ratelimit.Limiter
	campaignID string
}

// NewAdapter creates the patronage adapter. campaignID scopes bulk syncs
// when no explicit scope is passed.
func NewAdapter(client *Client, resolver *platforms.Resolver, limiter *ratelimit.Limiter, campaignID string) *Adapter {
	return &Adapter{
		client:     client,
		resolver:   resolver,
		limiter:    limiter,
		campaignID: campaignID,
	}
}

// Platform returns the platform this adapter serves
func (a *Adapter) Platform() platforms.Platform {
	return platforms.PlatformPatronage
}

// HandleWebhook processes one verified patronage webhook. The eventType is
// the platform's trigger header (members:create, members:update,
// members:delete).
func (a *Adapter) HandleWebhook(ctx context.Context, eventType string, payload []byte) (*platforms.SyncResult, error) {
	var wh webhookPayload
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, &syncerr.ValidationError{Platform: "patronage", Reason: err.Error()}
	}
	if wh.Data.ID == "" {
		return nil, &syncerr.ValidationError{Platform: "patronage", Reason: "payload has no member id"}
	}

	switch eventType {
	case "members:create", "members:update", "members:pledge:create", "members:pledge:update":
		m, err := a.SyncOne(ctx, normalizePatron(&wh.Data))
		if err != nil {
			return nil, err
		}
		return &platforms.SyncResult{MemberID: m.ID, ExternalID: wh.Data.ID, Action: "synced"}, nil

	case "members:delete", "members:pledge:delete":
		if err := a.resolver.Deactivate(ctx, platforms.PlatformPatronage, wh.Data.ID); err != nil {
			return nil, err
		}
		return &platforms.SyncResult{ExternalID: wh.Data.ID, Action: "deactivated"}, nil

	default:
		log.Printf("[PATRONAGE]: Ignoring webhook event '%s'", eventType)
		return &platforms.SyncResult{Action: "ignored"}, nil
	}
}

// SyncOne resolves a single normalized patron into a member
func (a *Adapter) SyncOne(ctx context.Context, rec *platforms.ExternalRecord) (*member.Member, error) {
	return a.resolver.Resolve(ctx, platforms.PlatformPatronage, rec)
}

// BulkSync walks the campaign member listing by opaque cursor. Each page
// fetch is rate-limited; per-record failures are isolated.
func (a *Adapter) BulkSync(ctx context.Context, scope string) (*platforms.BulkResult, error) {
	campaignID := scope
	if campaignID == "" {
		campaignID = a.campaignID
	}
	if campaignID == "" {
		return nil, fmt.Errorf("no patronage campaign configured")
	}

	result := &platforms.BulkResult{}

	cursor := ""
	for {
		var patrons []Patron
		var next string

		err := a.limiter.Do(ctx, string(platforms.PlatformPatronage), func(ctx context.Context) error {
			var err error
			patrons, next, err = a.client.ListMembers(ctx, campaignID, cursor)
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to fetch patron page: %w", err)
		}

		recs := make([]*platforms.ExternalRecord, len(patrons))
		for i := range patrons {
			recs[i] = normalizePatron(&patrons[i])
		}

		synced, failed := platforms.ProcessRecords(ctx, platforms.PlatformPatronage, platforms.DefaultBulkWorkers, recs,
			func(ctx context.Context, rec *platforms.ExternalRecord) error {
				_, err := a.SyncOne(ctx, rec)
				return err
			})
		result.Synced += synced
		result.Errors += failed

		if next == "" || ctx.Err() != nil {
			break
		}
		cursor = next
	}

	return result, nil
}

// FetchRecord re-fetches a patron's current state for drift detection
func (a *Adapter) FetchRecord(ctx context.Context, externalID string) (*platforms.ExternalRecord, error) {
	var patron *Patron

	err := a.limiter.Do(ctx, string(platforms.PlatformPatronage), func(ctx context.Context) error {
		var err error
		patron, err = a.client.GetMember(ctx, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return normalizePatron(patron), nil
}

// normalizePatron maps a patron into the canonical record shape. The
// platform reports a single full name, split on the first space.
func normalizePatron(p *Patron) *platforms.ExternalRecord {
	first, last := splitName(p.Attributes.FullName)

	return &platforms.ExternalRecord{
		ExternalID: p.ID,
		FirstName:  first,
		LastName:   last,
		Email:      p.Attributes.Email,
		Metadata: map[string]any{
			"patron_status": p.Attributes.PatronStatus,
			"tier":          p.Attributes.TierTitle,
			"amount_cents":  p.Attributes.AmountCents,
		},
	}
}

// splitName divides a full name into first and last at the first space
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	if first, last, ok := strings.Cut(full, " "); ok {
		return first, last
	}
	return full, ""
}
