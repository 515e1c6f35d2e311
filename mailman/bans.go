package mailman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/s0up4200/mailmanctl/restbase"
)

// Bans is a ban list, either site-wide or for one list
type Bans struct {
	conn *restbase.Connection
	url  string
	list *MailingList
}

// List returns the owning list, or nil for the site-wide ban list
func (b *Bans) List() *MailingList {
	return b.list
}

// Entries returns the banned addresses
func (b *Bans) Entries(ctx context.Context) ([]*BannedAddress, error) {
	bans, err := restbase.Collect(ctx, b.conn, b.url, newBannedAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get bans: %w", err)
	}
	return bans, nil
}

// Page returns one page of banned addresses
func (b *Bans) Page(count, page int) *restbase.Page[*BannedAddress] {
	return restbase.NewPage(b.conn, b.url, count, page, newBannedAddress)
}

// Add bans email. Email may also be a regular expression starting with ^.
func (b *Bans) Add(ctx context.Context, email string) (*BannedAddress, error) {
	resp, _, err := b.conn.Call(ctx, b.url, restbase.Data{"email": email}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to ban %s: %w", email, err)
	}
	location, err := requireLocation(resp)
	if err != nil {
		return nil, err
	}
	return newBannedAddress(b.conn, location, nil), nil
}

// Remove lifts the ban on email
func (b *Bans) Remove(ctx context.Context, email string) error {
	if _, _, err := b.conn.Call(ctx, b.url+"/"+url.PathEscape(email), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to unban %s: %w", email, err)
	}
	return nil
}

// Contains reports whether email is banned
func (b *Bans) Contains(ctx context.Context, email string) (bool, error) {
	_, _, err := b.conn.Call(ctx, b.url+"/"+url.PathEscape(email), nil, "")
	if err == nil {
		return true, nil
	}
	if restbase.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check ban on %s: %w", email, err)
}

// BannedAddress is a proxy for one ban entry
type BannedAddress struct {
	*restbase.Resource[BanInfo]
}

func newBannedAddress(conn *restbase.Connection, url string, entry map[string]any) *BannedAddress {
	return &BannedAddress{restbase.NewResource[BanInfo](conn, "BannedAddress", url, banProperties, entry)}
}

// String never fetches
func (a *BannedAddress) String() string {
	if v, ok := a.Peek("email"); ok {
		return fmt.Sprint(v)
	}
	return a.URL()
}

// Unban deletes this ban entry
func (a *BannedAddress) Unban(ctx context.Context) error {
	if _, _, err := a.Connection().Call(ctx, a.URL(), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to unban: %w", err)
	}
	return nil
}
