package mailman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/s0up4200/mailmanctl/restbase"
)

// Domain is a proxy for a mail domain
type Domain struct {
	*restbase.Resource[DomainInfo]
}

func newDomain(conn *restbase.Connection, url string, entry map[string]any) *Domain {
	return &Domain{restbase.NewResource[DomainInfo](conn, "Domain", url, domainProperties, entry)}
}

// String never fetches; an unloaded domain prints its URL.
func (d *Domain) String() string {
	if host := d.cachedString("mail_host"); host != "" {
		return fmt.Sprintf("<Domain %q>", host)
	}
	return fmt.Sprintf("<Domain %s>", d.URL())
}

func (d *Domain) cachedString(name string) string {
	v, _ := d.Peek(name)
	s, _ := v.(string)
	return s
}

func (d *Domain) mailHost(ctx context.Context) (string, error) {
	info, err := d.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.MailHost, nil
}

// Owners returns the raw owner records of the domain
func (d *Domain) Owners(ctx context.Context) ([]map[string]any, error) {
	entries, err := fetchEntries(ctx, d.Connection(), d.URL()+"/owners", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain owners: %w", err)
	}
	if entries == nil {
		entries = []map[string]any{}
	}
	return entries, nil
}

// AddOwner adds a domain owner by email address
func (d *Domain) AddOwner(ctx context.Context, owner string) error {
	if _, _, err := d.Connection().Call(ctx, d.URL()+"/owners", restbase.Data{"owner": owner}, ""); err != nil {
		return fmt.Errorf("failed to add domain owner %s: %w", owner, err)
	}
	return nil
}

// RemoveAllOwners removes every owner of the domain
func (d *Domain) RemoveAllOwners(ctx context.Context) (*restbase.Response, error) {
	resp, _, err := d.Connection().Call(ctx, d.URL()+"/owners", nil, http.MethodDelete)
	if err != nil {
		return nil, fmt.Errorf("failed to remove domain owners: %w", err)
	}
	return resp, nil
}

func (d *Domain) listsPath(ctx context.Context, advertised bool) (string, error) {
	host, err := d.mailHost(ctx)
	if err != nil {
		return "", err
	}
	path := "domains/" + url.PathEscape(host) + "/lists"
	if advertised {
		path += "?advertised=true"
	}
	return path, nil
}

// Lists returns the lists of the domain. With advertised set only
// advertised lists are returned.
func (d *Domain) Lists(ctx context.Context, advertised bool) ([]*MailingList, error) {
	path, err := d.listsPath(ctx, advertised)
	if err != nil {
		return nil, err
	}
	lists, err := restbase.Collect(ctx, d.Connection(), path, newMailingList)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain lists: %w", err)
	}
	return lists, nil
}

// ListPage returns one page of the domain's lists
func (d *Domain) ListPage(ctx context.Context, count, page int, advertised bool) (*restbase.Page[*MailingList], error) {
	path, err := d.listsPath(ctx, advertised)
	if err != nil {
		return nil, err
	}
	return restbase.NewPage(d.Connection(), path, count, page, newMailingList), nil
}

// CreateList creates listName@<mail_host> and returns an unloaded proxy for it
func (d *Domain) CreateList(ctx context.Context, listName string) (*MailingList, error) {
	host, err := d.mailHost(ctx)
	if err != nil {
		return nil, err
	}
	fqdn := listName + "@" + host
	resp, _, err := d.Connection().Call(ctx, "lists", restbase.Data{"fqdn_listname": fqdn}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create list %s: %w", fqdn, err)
	}
	location, err := requireLocation(resp)
	if err != nil {
		return nil, err
	}
	return newMailingList(d.Connection(), location, nil), nil
}
