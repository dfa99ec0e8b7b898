package twitter

import (
	"fmt"
	"net/url"
	"strings"

	"twaler/pkg/cursor"
	"twaler/pkg/seed"
)

const (
	// DefaultBaseURL is the versioned API root
	DefaultBaseURL = "http://api.twitter.com/1"

	// TimelineCount is the page size requested for timelines
	TimelineCount = 200

	profilePath     = "/users/show"
	timelinePath    = "/statuses/user_timeline"
	friendsPath     = "/friends/ids"
	membershipsPath = "/lists/memberships"
	membersPath     = "/lists/members"
	quotaPath       = "/account/rate_limit_status"
)

// Endpoints builds request URLs for one API root and wire format
type Endpoints struct {
	base   string
	format string
}

// NewEndpoints validates baseURL and format ("json" or "xml")
func NewEndpoints(baseURL, format string) (*Endpoints, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if format != "json" && format != "xml" {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return &Endpoints{base: strings.TrimRight(baseURL, "/"), format: format}, nil
}

// Format returns the wire format used in paths and cache names
func (e *Endpoints) Format() string {
	return e.format
}

// Quota returns the rate-limit-status URL
func (e *Endpoints) Quota() string {
	return e.build(quotaPath, nil)
}

// URL builds the request for one page of kind. The cursor is ignored for
// single-page kinds and list is only used by list-members.
func (e *Endpoints) URL(kind seed.Kind, targetID, list string, c cursor.Cursor) (string, error) {
	params := url.Values{}

	switch kind {
	case seed.Profile:
		params.Set("user_id", targetID)
		return e.build(profilePath, params), nil

	case seed.Timeline:
		params.Set("include_entities", "t")
		params.Set("trim_user", "t")
		params.Set("user_id", targetID)
		params.Set("count", fmt.Sprint(TimelineCount))
		return e.build(timelinePath, params), nil

	case seed.Friends:
		params.Set("user_id", targetID)
		params.Set("cursor", c.String())
		return e.build(friendsPath, params), nil

	case seed.Memberships:
		params.Set("user_id", targetID)
		params.Set("cursor", c.String())
		return e.build(membershipsPath, params), nil

	case seed.Members:
		if list == "" {
			return "", fmt.Errorf("list-members for %s needs a list name", targetID)
		}
		params.Set("owner_id", targetID)
		params.Set("slug", list)
		params.Set("cursor", c.String())
		return e.build(membersPath, params), nil
	}

	return "", fmt.Errorf("unknown kind %q", kind)
}

func (e *Endpoints) build(path string, params url.Values) string {
	u := fmt.Sprintf("%s%s.%s", e.base, path, e.format)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
