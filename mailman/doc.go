// Package mailman provides a client for the GNU Mailman 3 REST API.
//
// Every object returned by the client is a lazy proxy: it knows its URL and
// fetches its JSON representation on first access. Proxies built from
// collection entries start out populated and cost no extra request.
//
// # Usage
//
//	logger := zerolog.New(os.Stderr)
//	client, err := mailman.NewClient(
//		"http://localhost:8001/3.1/",
//		logger,
//		restbase.WithBasicAuth("restadmin", "restpass"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	domain, err := client.CreateDomain(ctx, "example.com", mailman.DomainOptions{})
//	list, err := domain.CreateList(ctx, "test")
//	res, err := list.Subscribe(ctx, "anne@example.com", mailman.SubscribeOptions{
//		PreVerified:  true,
//		PreConfirmed: true,
//	})
//	if res.IsPending() {
//		// token in res.Pending
//	}
//
// # Moderation
//
// Held messages and subscription requests take one of the Action values.
// The client does not validate actions; the server decides.
//
// # Error Handling
//
// Errors from the restbase package surface unchanged and wrapped. Looking
// up or removing an address that is not subscribed returns
// *NotAMemberError, which unwraps to the 404 *restbase.HTTPError:
//
//	var notMember *mailman.NotAMemberError
//	if errors.As(err, &notMember) {
//		fmt.Println(notMember.Address, "is not on", notMember.List)
//	}
//
// # Concurrency
//
// The client performs no background work. A Client and its Connection may
// be shared between goroutines; individual proxies may not.
package mailman
