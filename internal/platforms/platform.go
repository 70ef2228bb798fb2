// Package platforms defines the canonical shapes shared by every external
// platform adapter: the platform enum, the normalized external record, the
// adapter contract, and the startup registry that dispatches by platform.
package platforms

import (
	"context"
	"fmt"

	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// Platform identifies one of the external systems the club syncs with
type Platform string

const (
	PlatformTicketing      Platform = "ticketing"
	PlatformPatronage      Platform = "patronage"
	PlatformEmailMarketing Platform = "email-marketing"
	PlatformChatCommunity  Platform = "chat-community"
)

// All lists every supported platform, in scheduling order
func All() []Platform {
	return []Platform{
		PlatformTicketing,
		PlatformPatronage,
		PlatformEmailMarketing,
		PlatformChatCommunity,
	}
}

// Parse validates a platform name from a route parameter or config key
func Parse(s string) (Platform, error) {
	p := Platform(s)
	switch p {
	case PlatformTicketing, PlatformPatronage, PlatformEmailMarketing, PlatformChatCommunity:
		return p, nil
	}
	return "", &syncerr.UnknownPlatformError{Platform: s}
}

// ExternalRecord is the canonical shape every adapter normalizes platform
// payloads into before resolution against the member store
type ExternalRecord struct {
	ExternalID string         `json:"external_id"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Email      string         `json:"email"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PlaceholderEmail synthesizes a deterministic address for platforms that do
// not expose one, so the same external record always resolves to the same
// member
func PlaceholderEmail(platform Platform, externalID string) string {
	return fmt.Sprintf("%s_%s@placeholder.local", platform, externalID)
}

// SyncResult describes the outcome of handling one verified webhook payload
type SyncResult struct {
	MemberID   uint   `json:"member_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Action     string `json:"action"` // synced, deactivated, ignored
}

// BulkResult aggregates a bulk sync run
type BulkResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// Adapter is the per-platform contract. One implementation per external
// system, selected once at startup through the Registry.
type Adapter interface {
	// Platform returns the platform this adapter serves
	Platform() Platform

	// HandleWebhook processes one verified webhook payload
	HandleWebhook(ctx context.Context, eventType string, payload []byte) (*SyncResult, error)

	// SyncOne resolves a single normalized external record into a member
	SyncOne(ctx context.Context, rec *ExternalRecord) (*member.Member, error)

	// BulkSync paginates through the platform's records, optionally scoped to
	// an organizer/campaign/list/guild identifier
	BulkSync(ctx context.Context, scope string) (*BulkResult, error)

	// FetchRecord re-fetches the current external state of one record, used
	// by drift detection
	FetchRecord(ctx context.Context, externalID string) (*ExternalRecord, error)
}

// Registry maps platforms to their adapters. Built once at startup; lookups
// after that are read-only.
type Registry struct {
	adapters map[Platform]Adapter
}

// NewRegistry creates a registry from the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Get returns the adapter for a platform
func (r *Registry) Get(platform Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, &syncerr.UnknownPlatformError{Platform: string(platform)}
	}
	return a, nil
}

// Platforms returns the platforms with a registered adapter
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.adapters))
	for _, p := range All() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
