package mailman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/s0up4200/mailmanctl/restbase"
)

// Member is a proxy for one membership of an address on a list
type Member struct {
	*restbase.Resource[MemberInfo]
}

func newMember(conn *restbase.Connection, url string, entry map[string]any) *Member {
	return &Member{restbase.NewResource[MemberInfo](conn, "Member", url, memberProperties, entry)}
}

// String never fetches; an unloaded member prints its URL.
func (m *Member) String() string {
	info, ok := m.Cached()
	if !ok || info.Address == "" {
		return fmt.Sprintf("<Member %s>", m.URL())
	}
	return fmt.Sprintf("<Member %q on %q>", info.Address, info.ListID)
}

// List returns a proxy for the list this membership belongs to
func (m *Member) List(ctx context.Context) (*MailingList, error) {
	info, err := m.Info(ctx)
	if err != nil {
		return nil, err
	}
	target, err := m.Connection().Resolve("lists/" + url.PathEscape(info.ListID))
	if err != nil {
		return nil, err
	}
	return newMailingList(m.Connection(), target, nil), nil
}

// Preferences returns the per-membership delivery preferences
func (m *Member) Preferences() *restbase.Settings {
	return restbase.NewSettings(m.Connection(), m.URL()+"/preferences")
}

// Unsubscribe deletes this membership
func (m *Member) Unsubscribe(ctx context.Context) error {
	if _, _, err := m.Connection().Call(ctx, m.URL(), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", m, err)
	}
	return nil
}
