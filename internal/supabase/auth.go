package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// User is an auth.users record as returned by the admin API.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// UserAttributes creates a user.
type UserAttributes struct {
	Email        string         `json:"email"`
	Password     string         `json:"password,omitempty"`
	EmailConfirm bool           `json:"email_confirm,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// CreateUser creates an auth user. Requires the service role key.
func (c *Client) CreateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/admin/users", nil, attrs, &u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", attrs.Email, err)
	}
	return &u, nil
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

// ListUsers returns one page of users. page starts at 1.
func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}
	path := "/auth/v1/admin/users"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp listUsersResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return resp.Users, nil
}

// FindUserByEmail pages through users looking for email. It returns nil
// when no user matches.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const perPage = 100
	for page := 1; ; page++ {
		users, err := c.ListUsers(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if strings.EqualFold(users[i].Email, email) {
				return &users[i], nil
			}
		}
		if len(users) < perPage {
			return nil, nil
		}
	}
}

// DeleteUser removes an auth user by ID.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
