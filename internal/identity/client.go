package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-events/internal/models"
)

// Client talks to the external identity provider's REST API. Profiles are
// never stored locally; every read goes out over HTTP (through the cache
// in Service).
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// userPayload is the provider's wire shape.
type userPayload struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	ProfileImageURL string `json:"profile_image_url"`
}

// FetchProfile retrieves one subject's profile. Any failure is returned to
// the caller; there is no partial-data fallback.
func (c *Client) FetchProfile(ctx context.Context, subject string) (*models.UserProfile, error) {
	if subject == "" {
		return nil, fmt.Errorf("identity: empty subject id")
	}

	url := fmt.Sprintf("%s/v1/users/%s", c.baseURL, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: request for %s failed: %w", subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: lookup for %s returned status %d", subject, resp.StatusCode)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("identity: failed to decode profile for %s: %w", subject, err)
	}

	profile := &models.UserProfile{
		ID:              payload.ID,
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		ProfileImageURL: payload.ProfileImageURL,
	}
	if len(payload.EmailAddresses) > 0 {
		profile.Email = payload.EmailAddresses[0].EmailAddress
	}

	return profile, nil
}
