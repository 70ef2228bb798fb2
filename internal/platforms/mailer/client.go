package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ethanbaker/clubsync/internal/platforms"
)

// Subscriber is one list member from the email-marketing API
type Subscriber struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"` // subscribed, unsubscribed, cleaned
	MergeFields  struct {
		FirstName string `json:"FNAME"`
		LastName  string `json:"LNAME"`
	} `json:"merge_fields"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags,omitempty"`
}

// subscriberPage is one offset-paginated page of list members
type subscriberPage struct {
	Members    []Subscriber `json:"members"`
	TotalItems int          `json:"total_items"`
}

// Client talks to the email-marketing platform's REST API
type Client struct {
	api *platforms.APIClient
}

// NewClient creates an email-marketing API client with key auth
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		api: platforms.NewAPIClient(platforms.PlatformEmailMarketing, baseURL,
			platforms.WithHeader("Authorization", "Bearer "+apiKey)),
	}
}

// ListSubscribers fetches one page of list members by offset. hasMore
// reports whether records remain past this page.
func (c *Client) ListSubscribers(ctx context.Context, listID string, offset, count int) ([]Subscriber, bool, error) {
	path := fmt.Sprintf("/3.0/lists/%s/members?offset=%d&count=%d", url.PathEscape(listID), offset, count)

	var page subscriberPage
	if err := c.api.GetJSON(ctx, path, &page); err != nil {
		return nil, false, err
	}

	return page.Members, offset+len(page.Members) < page.TotalItems, nil
}

// GetSubscriber fetches a single list member by id
func (c *Client) GetSubscriber(ctx context.Context, listID, subscriberID string) (*Subscriber, error) {
	var sub Subscriber
	path := "/3.0/lists/" + url.PathEscape(listID) + "/members/" + url.PathEscape(subscriberID)
	if err := c.api.GetJSON(ctx, path, &sub); err != nil {
		return nil, err
	}

	return &sub, nil
}

// TagSubscriber applies a tag to a list member, used to mirror club
// membership state onto the mailing list
func (c *Client) TagSubscriber(ctx context.Context, listID, subscriberID, tag string) error {
	body := map[string]any{
		"tags": []map[string]string{{"name": tag, "status": "active"}},
	}
	path := "/3.0/lists/" + url.PathEscape(listID) + "/members/" + url.PathEscape(subscriberID) + "/tags"
	return c.api.PostJSON(ctx, path, body, nil)
}
