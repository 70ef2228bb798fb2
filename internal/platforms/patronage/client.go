package patronage

import (
	"context"
	"net/url"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"golang.org/x/oauth2"
)

// PatronAttributes carries the patron fields the patronage API exposes
type PatronAttributes struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	PatronStatus string `json:"patron_status"`
	TierTitle    string `json:"tier_title,omitempty"`
	AmountCents  int    `json:"currently_entitled_amount_cents,omitempty"`
}

// Patron is one member record from the patronage API (JSON:API style)
type Patron struct {
	ID         string           `json:"id"`
	Attributes PatronAttributes `json:"attributes"`
}

// patronPage is one cursor-paginated page of campaign members
type patronPage struct {
	Data []Patron `json:"data"`
	Meta struct {
		Pagination struct {
			Cursors struct {
				Next string `json:"next"`
			} `json:"cursors"`
		} `json:"pagination"`
	} `json:"meta"`
}

// patronEnvelope wraps a single patron response
type patronEnvelope struct {
	Data Patron `json:"data"`
}

// Client talks to the patronage platform's API through an oauth2 client
type Client struct {
	api *platforms.APIClient
}

// NewClient creates a patronage API client. The access token is wrapped in
// an oauth2 static token source so the transport handles authorization.
func NewClient(ctx context.Context, baseURL, accessToken string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})

	return &Client{
		api: platforms.NewAPIClient(platforms.PlatformPatronage, baseURL,
			platforms.WithHTTPClient(oauth2.NewClient(ctx, src))),
	}
}

// ListMembers fetches one page of campaign members using opaque cursor
// pagination. An empty nextCursor on return means the listing is complete.
func (c *Client) ListMembers(ctx context.Context, campaignID, cursor string) ([]Patron, string, error) {
	path := "/api/oauth2/v2/campaigns/" + url.PathEscape(campaignID) + "/members"
	if cursor != "" {
		path += "?page[cursor]=" + url.QueryEscape(cursor)
	}

	var page patronPage
	if err := c.api.GetJSON(ctx, path, &page); err != nil {
		return nil, "", err
	}

	return page.Data, page.Meta.Pagination.Cursors.Next, nil
}

// GetMember fetches a single campaign member by id
func (c *Client) GetMember(ctx context.Context, memberID string) (*Patron, error) {
	var envelope patronEnvelope
	if err := c.api.GetJSON(ctx, "/api/oauth2/v2/members/"+url.PathEscape(memberID), &envelope); err != nil {
		return nil, err
	}

	return &envelope.Data, nil
}
