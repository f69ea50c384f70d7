package rest

import (
	"context"
	"net/http"
	"time"
)

// UserProfile is the subset of the /v1/user document the CLI shows.
type UserProfile struct {
	ID               string         `json:"id" yaml:"id"`
	Username         string         `json:"username" yaml:"username"`
	Name             string         `json:"name,omitempty" yaml:"name,omitempty"`
	Email            string         `json:"email,omitempty" yaml:"email,omitempty"`
	IsValidEmail     bool           `json:"is_valid_email" yaml:"is_valid_email"`
	Company          string         `json:"company,omitempty" yaml:"company,omitempty"`
	Timezone         string         `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	DefaultNamespace string         `json:"default_namespace_charged,omitempty" yaml:"default_namespace_charged,omitempty"`
	LastActivityDate *time.Time     `json:"last_activity_date,omitempty" yaml:"last_activity_date,omitempty"`
	Organizations    []Organization `json:"organizations,omitempty" yaml:"organizations,omitempty"`
}

// Organization is a membership entry of a UserProfile.
type Organization struct {
	OrganizationName string `json:"organization_name" yaml:"organization_name"`
	Role             string `json:"role" yaml:"role"`
}

// GetUser returns the profile of the authenticated user.
func (c *Client) GetUser(ctx context.Context) (*UserProfile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/user", nil)
	if err != nil {
		return nil, err
	}

	var user UserProfile
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
