package ticketing

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ethanbaker/clubsync/internal/platforms"
)

// Profile is the name/email block the ticketing API nests under each attendee
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Attendee is one attendee record from the ticketing API
type Attendee struct {
	ID          string  `json:"id"`
	EventID     string  `json:"event_id"`
	TicketClass string  `json:"ticket_class_name,omitempty"`
	Status      string  `json:"status,omitempty"`
	CheckedIn   bool    `json:"checked_in"`
	Profile     Profile `json:"profile"`
}

// EventInfo is an event header from the ticketing API
type EventInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
}

// AttendeePage is one page of the paginated attendee listing
type AttendeePage struct {
	Attendees  []Attendee `json:"attendees"`
	Pagination struct {
		Page      int `json:"page"`
		PageCount int `json:"page_count"`
	} `json:"pagination"`
}

// Client talks to the ticketing platform's REST API
type Client struct {
	api *platforms.APIClient
}

// NewClient creates a ticketing API client with token auth
func NewClient(baseURL, token string) *Client {
	return &Client{
		api: platforms.NewAPIClient(platforms.PlatformTicketing, baseURL,
			platforms.WithHeader("Authorization", "Bearer "+token)),
	}
}

// ListAttendees fetches one page of attendees, optionally scoped to an
// organizer. Page numbers start at 1; hasMore reports whether another page
// exists.
func (c *Client) ListAttendees(ctx context.Context, organizerID string, page int) ([]Attendee, bool, error) {
	path := fmt.Sprintf("/v3/attendees/?page=%d", page)
	if organizerID != "" {
		path += "&organizer=" + url.QueryEscape(organizerID)
	}

	var result AttendeePage
	if err := c.api.GetJSON(ctx, path, &result); err != nil {
		return nil, false, err
	}

	return result.Attendees, result.Pagination.Page < result.Pagination.PageCount, nil
}

// GetAttendee fetches a single attendee by id
func (c *Client) GetAttendee(ctx context.Context, attendeeID string) (*Attendee, error) {
	var att Attendee
	if err := c.api.GetJSON(ctx, "/v3/attendees/"+url.PathEscape(attendeeID)+"/", &att); err != nil {
		return nil, err
	}

	return &att, nil
}

// CheckInAttendee marks an attendee as checked in on the platform side
func (c *Client) CheckInAttendee(ctx context.Context, attendeeID string) error {
	body := map[string]any{"checked_in": true}
	return c.api.PostJSON(ctx, "/v3/attendees/"+url.PathEscape(attendeeID)+"/check-in/", body, nil)
}
