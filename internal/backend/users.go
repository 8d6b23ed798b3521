package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kvirtanen/galleria/internal/errors"
)

// GetUserByAppleID looks up the user row for an opaque Apple sign-in
// identifier. A missing row is a not-found error, not a transport failure.
func (c *Client) GetUserByAppleID(ctx context.Context, appleID string) (*User, error) {
	if appleID == "" {
		return nil, errors.Newf("apple id is required").
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}

	body, err := c.doGet(ctx, "get_user", c.userLookupURL(appleID))
	if err != nil {
		return nil, err
	}

	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		decodeErr := errors.Newf("user lookup response failed to decode: %w", err).
			Category(errors.CategoryDecode).
			Component("backend").
			Build()
		c.countError("get_user", decodeErr)
		return nil, decodeErr
	}

	if len(users) == 0 {
		return nil, errors.Newf("no user for the given apple id").
			Category(errors.CategoryNotFound).
			Component("backend").
			Build()
	}

	return &users[0], nil
}

// UpsertUser creates or merges a user row, stamping last_login with the
// current time. The merge-resolution preference header makes the backend
// treat a duplicate apple_id as an update.
func (c *Client) UpsertUser(ctx context.Context, upsert UserUpsert) (*User, error) {
	if upsert.AppleID == "" {
		return nil, errors.Newf("apple id is required").
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}

	if upsert.LastLogin == "" {
		upsert.LastLogin = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(upsert)
	if err != nil {
		return nil, errors.Newf("failed to marshal user upsert: %w", err).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/users", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Newf("failed to create upsert request: %w", err).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	body, err := c.do(ctx, "upsert_user", req)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		decodeErr := errors.Newf("user upsert response failed to decode: %w", err).
			Category(errors.CategoryDecode).
			Component("backend").
			Build()
		c.countError("upsert_user", decodeErr)
		return nil, decodeErr
	}

	if len(users) == 0 {
		return nil, errors.Newf("upsert returned no user row").
			Category(errors.CategoryServer).
			Component("backend").
			Build()
	}

	c.logger.Info("User upserted", "user_row_id", users[0].ID)

	return &users[0], nil
}
