package twitter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"twaler/pkg/cursor"
	"twaler/pkg/seed"
)

func TestEndpointURL(t *testing.T) {
	ep, err := NewEndpoints("http://api.example.test/1/", "json")
	require.NoError(t, err)

	tests := []struct {
		kind   seed.Kind
		list   string
		cursor cursor.Cursor
		path   string
		query  url.Values
	}{
		{seed.Profile, "", cursor.Start, "/1/users/show.json", url.Values{"user_id": {"12"}}},
		{seed.Timeline, "", cursor.Start, "/1/statuses/user_timeline.json", url.Values{
			"include_entities": {"t"}, "trim_user": {"t"}, "user_id": {"12"}, "count": {"200"},
		}},
		{seed.Friends, "", cursor.Start, "/1/friends/ids.json", url.Values{"user_id": {"12"}, "cursor": {"-1"}}},
		{seed.Memberships, "", "1374004777531007833", "/1/lists/memberships.json", url.Values{
			"user_id": {"12"}, "cursor": {"1374004777531007833"},
		}},
		{seed.Members, "team", cursor.Start, "/1/lists/members.json", url.Values{
			"owner_id": {"12"}, "slug": {"team"}, "cursor": {"-1"},
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			raw, err := ep.URL(tt.kind, "12", tt.list, tt.cursor)
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "api.example.test", u.Host)
			assert.Equal(t, tt.path, u.Path)
			assert.Equal(t, tt.query, u.Query())
		})
	}
}

func TestEndpointXMLAndQuota(t *testing.T) {
	ep, err := NewEndpoints("", "xml")
	require.NoError(t, err)
	assert.Equal(t, "xml", ep.Format())
	assert.Equal(t, "http://api.twitter.com/1/account/rate_limit_status.xml", ep.Quota())

	raw, err := ep.URL(seed.Profile, "7", "", cursor.Start)
	require.NoError(t, err)
	assert.Equal(t, "http://api.twitter.com/1/users/show.xml?user_id=7", raw)
}

func TestEndpointErrors(t *testing.T) {
	_, err := NewEndpoints("http://api.example.test/1", "csv")
	assert.Error(t, err)
	_, err = NewEndpoints("ftp://api.example.test", "json")
	assert.Error(t, err)

	ep, err := NewEndpoints("http://api.example.test/1", "json")
	require.NoError(t, err)
	_, err = ep.URL(seed.Members, "12", "", cursor.Start)
	assert.Error(t, err, "list-members needs a slug")
	_, err = ep.URL(seed.Kind("mentions"), "12", "", cursor.Start)
	assert.Error(t, err)
}
