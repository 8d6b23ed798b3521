package backend

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kvirtanen/galleria/internal/errors"
)

// pageURL builds the range query against the images table: all columns,
// newest first, bounded by offset/limit, optionally filtered by owner.
func (c *Client) pageURL(q PageQuery) string {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("order", "created_at.desc")
	values.Set("offset", strconv.Itoa(q.Offset))
	values.Set("limit", strconv.Itoa(q.Limit))
	if q.Owner != "" {
		values.Set("user_id", "eq."+q.Owner)
	}
	return c.config.BaseURL + "/images?" + values.Encode()
}

// userLookupURL builds the single-row lookup by Apple sign-in identifier.
func (c *Client) userLookupURL(appleID string) string {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("apple_id", "eq."+appleID)
	values.Set("limit", "1")
	return c.config.BaseURL + "/users?" + values.Encode()
}

// NormalizeImageURL canonicalizes an image URL before it is used as a cache
// key or fetched: duplicated path separators collapse to one and table-query
// artifacts (select/order/offset/limit and eq.-valued filters) that leak into
// stored URLs are stripped. Gallery consumers and the image cache must use
// the same normalization or they produce cache misses and duplicate
// downloads.
func NormalizeImageURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.Newf("invalid image URL %q", raw).
			Category(errors.CategoryInvalidRequest).
			Component("backend").
			Build()
	}

	for strings.Contains(u.Path, "//") {
		u.Path = strings.ReplaceAll(u.Path, "//", "/")
	}
	u.RawPath = ""

	query := u.Query()
	for _, artifact := range []string{"select", "order", "offset", "limit"} {
		query.Del(artifact)
	}
	for key, vals := range query {
		for _, val := range vals {
			if strings.HasPrefix(val, "eq.") {
				query.Del(key)
				break
			}
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""

	return u.String(), nil
}
