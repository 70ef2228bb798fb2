// Package chat adapts the chat-community platform (guild members, roles,
// direct messages) to the canonical member model.
package chat

import (
	"context"
	"encoding/json"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// memberPageSize is the gateway's maximum page size for member listing
const memberPageSize = 1000

// webhookPayload is the chat platform's event envelope: t names the event,
// d carries the guild member
type webhookPayload struct {
	Type string `json:"t"`
	Data struct {
		GuildID string `json:"guild_id"`
		User    struct {
			ID         string `json:"id"`
			Username   string `json:"username"`
			GlobalName string `json:"global_name"`
		} `json:"user"`
		Nick  string   `json:"nick,omitempty"`
		Roles []string `json:"roles,omitempty"`
	} `json:"d"`
}

// Adapter synchronizes guild members into canonical members through a
// long-lived gateway session
type Adapter struct {
	api      GuildAPI
	resolver *platforms.Resolver
	limiter  *ratelimit.Limiter
	guildID  string
}

// NewAdapter creates the chat-community adapter over an established session
func NewAdapter(api GuildAPI, resolver *platforms.Resolver, limiter *ratelimit.Limiter, guildID string) *Adapter {
	return &Adapter{
		api:      api,
		resolver: resolver,
		limiter:  limiter,
		guildID:  guildID,
	}
}

// Platform returns the platform this adapter serves
func (a *Adapter) Platform() platforms.Platform {
	return platforms.PlatformChatCommunity
}

// HandleWebhook processes one verified chat gateway event
func (a *Adapter) HandleWebhook(ctx context.Context, _ string, payload []byte) (*platforms.SyncResult, error) {
	var wh webhookPayload
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, &syncerr.ValidationError{Platform: "chat-community", Reason: err.Error()}
	}
	if wh.Data.User.ID == "" {
		return nil, &syncerr.ValidationError{Platform: "chat-community", Reason: "payload has no user id"}
	}

	switch wh.Type {
	case "GUILD_MEMBER_ADD", "GUILD_MEMBER_UPDATE":
		rec := &platforms.ExternalRecord{
			ExternalID: wh.Data.User.ID,
			FirstName:  displayName(wh.Data.User.GlobalName, wh.Data.User.Username),
			Metadata: map[string]any{
				"username": wh.Data.User.Username,
				"nick":     wh.Data.Nick,
				"roles":    wh.Data.Roles,
			},
		}
		m, err := a.SyncOne(ctx, rec)
		if err != nil {
			return nil, err
		}
		return &platforms.SyncResult{MemberID: m.ID, ExternalID: wh.Data.User.ID, Action: "synced"}, nil

	case "GUILD_MEMBER_REMOVE":
		if err := a.resolver.Deactivate(ctx, platforms.PlatformChatCommunity, wh.Data.User.ID); err != nil {
			return nil, err
		}
		return &platforms.SyncResult{ExternalID: wh.Data.User.ID, Action: "deactivated"}, nil

	default:
		log.Printf("[CHAT]: Ignoring gateway event '%s'", wh.Type)
		return &platforms.SyncResult{Action: "ignored"}, nil
	}
}

// SyncOne resolves a single normalized guild member into a member
func (a *Adapter) SyncOne(ctx context.Context, rec *platforms.ExternalRecord) (*member.Member, error) {
	return a.resolver.Resolve(ctx, platforms.PlatformChatCommunity, rec)
}

// BulkSync walks the guild member list using after-id pagination. Each page
// fetch is rate-limited; per-record failures are isolated.
func (a *Adapter) BulkSync(ctx context.Context, scope string) (*platforms.BulkResult, error) {
	guildID := scope
	if guildID == "" {
		guildID = a.guildID
	}
	if guildID == "" {
		return nil, &syncerr.ValidationError{Platform: "chat-community", Reason: "no guild configured"}
	}

	result := &platforms.BulkResult{}

	after := ""
	for {
		var page []*discordgo.Member

		err := a.limiter.Do(ctx, string(platforms.PlatformChatCommunity), func(_ context.Context) error {
			var err error
			page, err = a.api.GuildMembers(guildID, after, memberPageSize)
			return err
		})
		if err != nil {
			return result, err
		}

		if len(page) == 0 {
			break
		}

		recs := make([]*platforms.ExternalRecord, 0, len(page))
		for _, gm := range page {
			if gm.User == nil || gm.User.Bot {
				continue
			}
			recs = append(recs, normalizeGuildMember(gm))
		}

		synced, failed := platforms.ProcessRecords(ctx, platforms.PlatformChatCommunity, platforms.DefaultBulkWorkers, recs,
			func(ctx context.Context, rec *platforms.ExternalRecord) error {
				_, err := a.SyncOne(ctx, rec)
				return err
			})
		result.Synced += synced
		result.Errors += failed

		if len(page) < memberPageSize || ctx.Err() != nil {
			break
		}
		after = page[len(page)-1].User.ID
	}

	return result, nil
}

// FetchRecord re-fetches a guild member's current state for drift detection
func (a *Adapter) FetchRecord(ctx context.Context, externalID string) (*platforms.ExternalRecord, error) {
	var gm *discordgo.Member

	err := a.limiter.Do(ctx, string(platforms.PlatformChatCommunity), func(_ context.Context) error {
		var err error
		gm, err = a.api.GuildMember(a.guildID, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return normalizeGuildMember(gm), nil
}

// GrantRole assigns a guild role, a rate-limited side effect independent of
// record syncing
func (a *Adapter) GrantRole(ctx context.Context, userID, roleID string) error {
	return a.limiter.Do(ctx, string(platforms.PlatformChatCommunity), func(_ context.Context) error {
		return a.api.GuildMemberRoleAdd(a.guildID, userID, roleID)
	})
}

// DirectMessage opens a DM channel and sends a message to a guild member
func (a *Adapter) DirectMessage(ctx context.Context, userID, content string) error {
	return a.limiter.Do(ctx, string(platforms.PlatformChatCommunity), func(_ context.Context) error {
		channel, err := a.api.UserChannelCreate(userID)
		if err != nil {
			return err
		}

		_, err = a.api.ChannelMessageSend(channel.ID, content)
		return err
	})
}

// normalizeGuildMember maps a guild member into the canonical record shape.
// The platform exposes no email, so the resolver synthesizes a placeholder.
func normalizeGuildMember(gm *discordgo.Member) *platforms.ExternalRecord {
	rec := &platforms.ExternalRecord{
		ExternalID: gm.User.ID,
		FirstName:  displayName(gm.User.GlobalName, gm.User.Username),
		Metadata: map[string]any{
			"username": gm.User.Username,
			"nick":     gm.Nick,
			"roles":    gm.Roles,
		},
	}

	if !gm.JoinedAt.IsZero() {
		rec.Metadata["joined_at"] = gm.JoinedAt
	}

	return rec
}

// displayName prefers the user-facing global name over the handle
func displayName(globalName, username string) string {
	if globalName != "" {
		return globalName
	}
	return username
}
