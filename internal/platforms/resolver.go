package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/datahash"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// Resolver implements the resolution and merge policy shared by every
// adapter: integration lookup first, then member by email, then create.
// Looking up the integration before the email prevents duplicate members
// when the same person appears under two external ids before a linking
// webhook arrives.
type Resolver struct {
	members      member.Store
	integrations integration.Store
}

// NewResolver creates a resolver over the member and integration stores
func NewResolver(members member.Store, integrations integration.Store) *Resolver {
	return &Resolver{members: members, integrations: integrations}
}

// Resolve syncs one normalized external record into a canonical member and
// upserts the integration link with a fresh content hash. Safe to apply
// twice for the same record (duplicate webhook delivery).
func (r *Resolver) Resolve(ctx context.Context, platform Platform, rec *ExternalRecord) (*member.Member, error) {
	if rec == nil || rec.ExternalID == "" {
		return nil, &syncerr.ValidationError{Platform: string(platform), Reason: "external record has no id"}
	}

	if rec.Email == "" {
		rec.Email = PlaceholderEmail(platform, rec.ExternalID)
	}

	// (a) existing integration for (platform, external_id)
	link, err := r.integrations.FindByExternal(ctx, string(platform), rec.ExternalID)
	if err != nil {
		return nil, &syncerr.PersistenceError{Op: "integration lookup", Err: err}
	}

	var m *member.Member
	if link != nil {
		if m, err = r.members.FindByID(ctx, link.MemberID); err != nil {
			return nil, &syncerr.PersistenceError{Op: "member lookup", Err: err}
		}
	}

	// (b) member by email
	if m == nil {
		if m, err = r.members.FindByEmail(ctx, rec.Email); err != nil {
			return nil, &syncerr.PersistenceError{Op: "member lookup", Err: err}
		}
	}

	// (c) create a new member
	if m == nil {
		m = &member.Member{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
			Flags:     member.FlagActive,
		}
		if err := r.members.Create(ctx, m); err != nil {
			return nil, &syncerr.PersistenceError{Op: "member create", Err: err}
		}
	} else if r.fillGaps(m, rec) {
		if err := r.members.Update(ctx, m); err != nil {
			return nil, &syncerr.PersistenceError{Op: "member update", Err: err}
		}
	}

	if err := r.upsertLink(ctx, platform, m.ID, rec); err != nil {
		return nil, err
	}

	return m, nil
}

// fillGaps applies the fill-gaps-only merge policy: external data only
// populates currently-empty local fields and never overwrites locally
// curated values. Returns whether anything changed.
func (r *Resolver) fillGaps(m *member.Member, rec *ExternalRecord) bool {
	changed := false

	if m.FirstName == "" && rec.FirstName != "" {
		m.FirstName = rec.FirstName
		changed = true
	}
	if m.LastName == "" && rec.LastName != "" {
		m.LastName = rec.LastName
		changed = true
	}

	return changed
}

// upsertLink writes the integration row with a freshly computed content hash
func (r *Resolver) upsertLink(ctx context.Context, platform Platform, memberID uint, rec *ExternalRecord) error {
	hash, err := datahash.Hash(rec)
	if err != nil {
		return fmt.Errorf("failed to hash external record: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize external record: %w", err)
	}

	link := &integration.Integration{
		MemberID:     memberID,
		Platform:     string(platform),
		ExternalID:   rec.ExternalID,
		ExternalData: string(data),
		ContentHash:  hash,
		Flags:        integration.FlagActive,
		LastSyncedAt: time.Now(),
	}

	if err := r.integrations.Upsert(ctx, link); err != nil {
		return &syncerr.PersistenceError{Op: "integration upsert", Err: err}
	}

	return nil
}

// Deactivate marks the integration link inactive when the external side
// signals removal. The member record itself is never touched.
func (r *Resolver) Deactivate(ctx context.Context, platform Platform, externalID string) error {
	if err := r.integrations.Deactivate(ctx, string(platform), externalID); err != nil {
		return &syncerr.PersistenceError{Op: "integration deactivate", Err: err}
	}

	return nil
}
