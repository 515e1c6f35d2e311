package mailman

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/rs/zerolog"

	"github.com/s0up4200/mailmanctl/restbase"
)

// DefaultPageSize is the page size used when callers do not pick one
const DefaultPageSize = 50

// Client is the root of the Mailman REST API
type Client struct {
	conn   *restbase.Connection
	logger zerolog.Logger
}

// NewClient creates a new Mailman client. logger is used unless opts
// carries its own restbase.WithLogger.
func NewClient(baseURL string, logger zerolog.Logger, opts ...restbase.Option) (*Client, error) {
	all := append([]restbase.Option{restbase.WithLogger(logger)}, opts...)
	conn, err := restbase.NewConnection(baseURL, all...)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:   conn,
		logger: conn.Logger(),
	}, nil
}

// NewClientFromConnection wraps an existing connection
func NewClientFromConnection(conn *restbase.Connection) *Client {
	return &Client{conn: conn, logger: conn.Logger()}
}

// Connection returns the underlying connection
func (c *Client) Connection() *restbase.Connection {
	return c.conn
}

// System returns the server version information
func (c *Client) System(ctx context.Context) (map[string]any, error) {
	_, content, err := c.conn.CallObject(ctx, "system/versions", nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get system information: %w", err)
	}
	return content, nil
}

// Lists returns every mailing list on the server
func (c *Client) Lists(ctx context.Context) ([]*MailingList, error) {
	lists, err := restbase.Collect(ctx, c.conn, "lists", newMailingList)
	if err != nil {
		return nil, fmt.Errorf("failed to get lists: %w", err)
	}
	return lists, nil
}

// ListPage returns one page of all mailing lists
func (c *Client) ListPage(count, page int) *restbase.Page[*MailingList] {
	return restbase.NewPage(c.conn, "lists", count, page, newMailingList)
}

// GetList fetches a list by its fqdn_listname or list_id
func (c *Client) GetList(ctx context.Context, fqdnListname string) (*MailingList, error) {
	resp, content, err := c.conn.CallObject(ctx, "lists/"+url.PathEscape(fqdnListname), nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get list %s: %w", fqdnListname, err)
	}
	return newMailingList(c.conn, selfLink(content, resp.URL), content), nil
}

// DeleteList deletes a list by its fqdn_listname
func (c *Client) DeleteList(ctx context.Context, fqdnListname string) error {
	if _, _, err := c.conn.Call(ctx, "lists/"+url.PathEscape(fqdnListname), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to delete list %s: %w", fqdnListname, err)
	}
	c.logger.Debug().Str("list", fqdnListname).Msg("Deleted list")
	return nil
}

// Domains returns every domain ordered by mail host
func (c *Client) Domains(ctx context.Context) ([]*Domain, error) {
	domains, err := restbase.Collect(ctx, c.conn, "domains", newDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to get domains: %w", err)
	}
	slices.SortStableFunc(domains, func(a, b *Domain) int {
		return cmp.Compare(a.cachedString("mail_host"), b.cachedString("mail_host"))
	})
	return domains, nil
}

// GetDomain fetches a domain by its mail host
func (c *Client) GetDomain(ctx context.Context, mailHost string) (*Domain, error) {
	resp, content, err := c.conn.CallObject(ctx, "domains/"+url.PathEscape(mailHost), nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get domain %s: %w", mailHost, err)
	}
	return newDomain(c.conn, selfLink(content, resp.URL), content), nil
}

// DomainOptions are the optional fields of a new domain
type DomainOptions struct {
	Description string
	AliasDomain string
	Owners      []string
}

// CreateDomain creates a domain and returns an unloaded proxy for it
func (c *Client) CreateDomain(ctx context.Context, mailHost string, opts DomainOptions) (*Domain, error) {
	data := restbase.Data{"mail_host": mailHost}
	if opts.Description != "" {
		data["description"] = opts.Description
	}
	if opts.AliasDomain != "" {
		data["alias_domain"] = opts.AliasDomain
	}
	if len(opts.Owners) > 0 {
		data["owner"] = opts.Owners
	}

	resp, _, err := c.conn.Call(ctx, "domains", data, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create domain %s: %w", mailHost, err)
	}
	location, err := requireLocation(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("domain", mailHost).Str("location", location).Msg("Created domain")
	return newDomain(c.conn, location, nil), nil
}

// DeleteDomain deletes a domain by its mail host
func (c *Client) DeleteDomain(ctx context.Context, mailHost string) error {
	if _, _, err := c.conn.Call(ctx, "domains/"+url.PathEscape(mailHost), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to delete domain %s: %w", mailHost, err)
	}
	return nil
}

// Members returns every membership on the server
func (c *Client) Members(ctx context.Context) ([]*Member, error) {
	members, err := restbase.Collect(ctx, c.conn, "members", newMember)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// MemberPage returns one page of all memberships
func (c *Client) MemberPage(count, page int) *restbase.Page[*Member] {
	return restbase.NewPage(c.conn, "members", count, page, newMember)
}

// GetMemberByID fetches a membership by its member id
func (c *Client) GetMemberByID(ctx context.Context, memberID string) (*Member, error) {
	resp, content, err := c.conn.CallObject(ctx, "members/"+url.PathEscape(memberID), nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", memberID, err)
	}
	return newMember(c.conn, selfLink(content, resp.URL), content), nil
}

// Bans returns the site-wide ban list
func (c *Client) Bans() *Bans {
	return &Bans{conn: c.conn, url: "bans"}
}

// FindOptions narrows a member search. Empty fields are not sent.
type FindOptions struct {
	Subscriber string
	Role       string
	ListID     string
}

func (o FindOptions) data() restbase.Data {
	data := restbase.Data{}
	if o.Subscriber != "" {
		data["subscriber"] = o.Subscriber
	}
	if o.Role != "" {
		data["role"] = o.Role
	}
	if o.ListID != "" {
		data["list_id"] = o.ListID
	}
	return data
}

func (o FindOptions) query() string {
	values := url.Values{}
	for k, v := range o.data() {
		values.Set(k, v.(string))
	}
	return values.Encode()
}

// FindMembers searches memberships across all lists
func (c *Client) FindMembers(ctx context.Context, opts FindOptions) ([]*Member, error) {
	return findMembers(ctx, c.conn, opts)
}

// FindMemberPage is the paginated form of FindMembers
func (c *Client) FindMemberPage(opts FindOptions, count, page int) *restbase.Page[*Member] {
	return restbase.NewPage(c.conn, "members/find?"+opts.query(), count, page, newMember)
}

func findMembers(ctx context.Context, conn *restbase.Connection, opts FindOptions) ([]*Member, error) {
	entries, err := fetchEntries(ctx, conn, "members/find", opts.data())
	if err != nil {
		return nil, fmt.Errorf("failed to find members: %w", err)
	}
	return toMembers(conn, entries), nil
}

// fetchEntries calls path and returns the raw collection entries. A nil
// data issues a GET; otherwise a POST.
func fetchEntries(ctx context.Context, conn *restbase.Connection, path string, data restbase.Data) ([]map[string]any, error) {
	_, content, err := conn.Call(ctx, path, data, "")
	if err != nil {
		return nil, err
	}
	env, err := restbase.ParseEnvelope(content)
	if err != nil {
		return nil, err
	}
	return env.Entries, nil
}

func toMembers(conn *restbase.Connection, entries []map[string]any) []*Member {
	members := make([]*Member, 0, len(entries))
	for _, entry := range entries {
		members = append(members, newMember(conn, restbase.StringField(entry, "self_link"), entry))
	}
	return members
}

func sortByAddress(entries []map[string]any) {
	slices.SortStableFunc(entries, func(a, b map[string]any) int {
		return cmp.Compare(restbase.StringField(a, "address"), restbase.StringField(b, "address"))
	})
}

func selfLink(content map[string]any, fallback string) string {
	if link := restbase.StringField(content, "self_link"); link != "" {
		return link
	}
	return fallback
}

func requireLocation(resp *restbase.Response) (string, error) {
	location := resp.Location()
	if location == "" {
		return "", fmt.Errorf("%w: %s", ErrNoLocation, resp.URL)
	}
	return location, nil
}
