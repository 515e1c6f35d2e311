package mailman

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/mailmanctl/restbase"
)

func getTestList(t *testing.T, f *fakeMailman) *MailingList {
	t.Helper()
	f.seedList()
	list, err := f.client().GetList(context.Background(), "test@example.com")
	require.NoError(t, err)
	return list
}

func TestDomainCreateList(t *testing.T) {
	f := newFakeMailman(t)
	f.on(http.MethodGet, "domains/example.com", fakeResponse{body: map[string]any{
		"mail_host": "example.com",
		"self_link": f.link("domains/example.com"),
	}})
	f.on(http.MethodPost, "lists", fakeResponse{status: http.StatusCreated, location: f.link("lists/test.example.com")})
	f.seedList()
	ctx := context.Background()

	domain, err := f.client().GetDomain(ctx, "example.com")
	require.NoError(t, err)

	list, err := domain.CreateList(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", f.last().Form.Get("fqdn_listname"))

	info, err := list.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", info.FQDNListname)
}

func TestListLazyLoad(t *testing.T) {
	f := newFakeMailman(t)
	f.seedList()
	ctx := context.Background()

	list := newMailingList(f.client().Connection(), f.link("lists/test.example.com"), nil)
	assert.Equal(t, "<List "+f.link("lists/test.example.com")+">", list.String())
	assert.Empty(t, f.recorded())

	name, err := list.Get(ctx, "display_name")
	require.NoError(t, err)
	assert.Equal(t, "Test", name)
	_, err = list.Get(ctx, "volume")
	require.NoError(t, err)

	assert.Equal(t, 1, f.count(http.MethodGet, "lists/test.example.com"))

	_, err = list.Get(ctx, "bogus")
	var fieldErr *restbase.UnknownFieldError
	assert.True(t, errors.As(err, &fieldErr))
}

func TestListRosters(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "lists/test.example.com/roster/owner", fakeResponse{body: collection(
		map[string]any{"email": "owner@example.com"},
	)})
	f.on(http.MethodGet, "lists/test.example.com/roster/moderator", fakeResponse{body: collection()})
	f.on(http.MethodGet, "lists/test@example.com/roster/member", fakeResponse{body: collection(
		f.memberEntry("2", "zed@example.com"),
		f.memberEntry("1", "anne@example.com"),
	)})
	ctx := context.Background()

	owners, err := list.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@example.com"}, owners)

	moderators, err := list.Moderators(ctx)
	require.NoError(t, err)
	assert.Empty(t, moderators)

	members, err := list.Members(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, `<Member "anne@example.com" on "test.example.com">`, members[0].String())
	assert.Equal(t, `<Member "zed@example.com" on "test.example.com">`, members[1].String())
}

func TestListNonmembers(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodPost, "members/find", fakeResponse{body: collection()})

	nonmembers, err := list.Nonmembers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nonmembers)

	req := f.last()
	assert.Equal(t, "nonmember", req.Form.Get("role"))
	assert.Equal(t, "test.example.com", req.Form.Get("list_id"))
}

func TestListFindMemberPage(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "members/find", fakeResponse{body: collection(f.memberEntry("1", "anne@example.com"))})

	page, err := list.FindMemberPage(context.Background(), "anne@example.com", "", 10, 1)
	require.NoError(t, err)
	members, err := page.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)

	q := f.last().Query
	assert.Equal(t, "anne@example.com", q.Get("subscriber"))
	assert.Equal(t, "member", q.Get("role"))
	assert.Equal(t, "test.example.com", q.Get("list_id"))
	assert.Equal(t, "10", q.Get("count"))
}

func TestListGetMember(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "lists/test.example.com/member/anne@example.com", fakeResponse{
		body: f.memberEntry("1", "anne@example.com"),
	})
	f.on(http.MethodGet, "lists/test.example.com/member/broken@example.com", fakeResponse{
		status: http.StatusInternalServerError,
		body:   map[string]any{"title": "boom"},
	})
	ctx := context.Background()

	member, err := list.GetMember(ctx, "anne@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.link("members/1"), member.URL())

	_, err = list.GetMember(ctx, "nobody@example.com")
	var notMember *NotAMemberError
	require.True(t, errors.As(err, &notMember))
	assert.Equal(t, "nobody@example.com", notMember.Address)
	assert.Equal(t, "test@example.com", notMember.List)
	assert.Equal(t, "nobody@example.com is not a member address of test@example.com", err.Error())
	assert.True(t, restbase.IsNotFound(err))

	// only 404 is relabelled
	_, err = list.GetMember(ctx, "broken@example.com")
	require.Error(t, err)
	assert.False(t, errors.As(err, &notMember))
	var httpErr *restbase.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestListSubscribe(t *testing.T) {
	tests := []struct {
		name        string
		opts        SubscribeOptions
		response    fakeResponse
		wantPending bool
		wantForm    map[string]string
		absentKeys  []string
	}{
		{
			name: "immediate",
			opts: SubscribeOptions{DisplayName: "Anne", PreVerified: true, PreConfirmed: true, PreApproved: true},
			response: fakeResponse{
				status:   http.StatusCreated,
				location: "http://localhost/3.1/members/42",
			},
			wantForm: map[string]string{
				"list_id":       "test.example.com",
				"subscriber":    "anne@example.com",
				"display_name":  "Anne",
				"pre_verified":  "true",
				"pre_confirmed": "true",
				"pre_approved":  "true",
			},
		},
		{
			name: "pending confirmation",
			response: fakeResponse{
				status: http.StatusAccepted,
				body:   map[string]any{"token": "0000000000abcdef", "token_owner": "subscriber"},
			},
			wantPending: true,
			wantForm: map[string]string{
				"list_id":    "test.example.com",
				"subscriber": "anne@example.com",
			},
			absentKeys: []string{"display_name", "pre_verified", "pre_confirmed", "pre_approved"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeMailman(t)
			list := getTestList(t, f)
			f.on(http.MethodPost, "members", tt.response)

			res, err := list.Subscribe(context.Background(), "anne@example.com", tt.opts)
			require.NoError(t, err)

			req := f.last()
			for k, v := range tt.wantForm {
				assert.Equal(t, v, req.Form.Get(k), k)
			}
			for _, k := range tt.absentKeys {
				assert.NotContains(t, req.Form, k)
			}

			assert.Equal(t, tt.wantPending, res.IsPending())
			if tt.wantPending {
				assert.Equal(t, "0000000000abcdef", res.Pending["token"])
				assert.Equal(t, "subscriber", res.Pending["token_owner"])
				return
			}
			assert.Equal(t, "http://localhost/3.1/members/42", res.Member.URL())
			assert.False(t, res.Member.Loaded())
		})
	}
}

func TestListUnsubscribe(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodDelete, "lists/test.example.com/member/anne@example.com", fakeResponse{status: http.StatusNoContent})
	ctx := context.Background()

	require.NoError(t, list.Unsubscribe(ctx, "anne@example.com"))

	err := list.Unsubscribe(ctx, "nobody@example.com")
	var notMember *NotAMemberError
	assert.True(t, errors.As(err, &notMember))
}

func TestListRoles(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodPost, "members", fakeResponse{status: http.StatusCreated, location: f.link("members/9")})
	f.on(http.MethodDelete, "lists/test@example.com/owner/boss@example.com", fakeResponse{status: http.StatusNoContent})
	ctx := context.Background()

	require.NoError(t, list.AddModerator(ctx, "mod@example.com"))
	req := f.last()
	assert.Equal(t, "moderator", req.Form.Get("role"))
	assert.Equal(t, "mod@example.com", req.Form.Get("subscriber"))
	assert.Equal(t, "test.example.com", req.Form.Get("list_id"))

	require.NoError(t, list.RemoveOwner(ctx, "boss@example.com"))
	assert.Equal(t, 1, f.count(http.MethodDelete, "lists/test@example.com/owner/boss@example.com"))
}

func TestListSettings(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "lists/test@example.com/config", fakeResponse{body: map[string]any{
		"description":   "old",
		"fqdn_listname": "test@example.com",
		"list_id":       "test.example.com",
	}})
	f.on(http.MethodPatch, "lists/test@example.com/config", fakeResponse{status: http.StatusNoContent})
	ctx := context.Background()

	settings, err := list.Settings(ctx)
	require.NoError(t, err)
	require.NoError(t, settings.Set(ctx, "description", "new"))

	again, err := list.Settings(ctx)
	require.NoError(t, err)
	assert.Same(t, settings, again)

	_, err = settings.Save(ctx)
	require.NoError(t, err)

	req := f.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "new", req.Form.Get("description"))
	assert.NotContains(t, req.Form, "fqdn_listname")
	assert.NotContains(t, req.Form, "list_id")
}

func TestListRequests(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "lists/test@example.com/requests", fakeResponse{body: collection(map[string]any{
		"email":       "anne@example.com",
		"token":       "abc123",
		"token_owner": "moderator",
		"list_id":     "test.example.com",
		"when":        "2024-01-02T03:04:05",
	})})
	f.on(http.MethodPost, "lists/test.example.com/requests/abc123", fakeResponse{status: http.StatusNoContent})
	ctx := context.Background()

	requests, err := list.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, SubscriptionRequest{
		Email:       "anne@example.com",
		Token:       "abc123",
		TokenOwner:  "moderator",
		ListID:      "test.example.com",
		RequestDate: "2024-01-02T03:04:05",
	}, requests[0])

	resp, err := list.AcceptRequest(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "accept", f.last().Form.Get("action"))
}

func TestListDelete(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodDelete, "lists/test.example.com", fakeResponse{status: http.StatusNoContent})

	require.NoError(t, list.Delete(context.Background()))
	assert.Equal(t, 1, f.count(http.MethodDelete, "lists/test.example.com"))
}

func TestListArchivers(t *testing.T) {
	f := newFakeMailman(t)
	list := getTestList(t, f)
	f.on(http.MethodGet, "lists/test.example.com/archivers", fakeResponse{body: map[string]any{
		"mhonarc":      false,
		"mail-archive": true,
		"prototype":    false,
		"hyperkitty":   true,
	}})
	f.on(http.MethodPatch, "lists/test.example.com/archivers", fakeResponse{status: http.StatusNoContent})
	ctx := context.Background()

	archivers, err := list.Archivers(ctx)
	require.NoError(t, err)
	enabled, ok, err := archivers.Get(ctx, "hyperkitty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, true, enabled)

	require.NoError(t, list.SetArchivers(ctx, map[string]bool{"mhonarc": true, "hyperkitty": false}))

	req := f.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "true", req.Form.Get("mhonarc"))
	assert.Equal(t, "false", req.Form.Get("hyperkitty"))
	assert.Equal(t, "true", req.Form.Get("mail-archive"))
	assert.Equal(t, 2, f.count(http.MethodGet, "lists/test.example.com/archivers"))
}
