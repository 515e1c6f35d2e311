// Package restbase provides the plumbing shared by every Mailman REST proxy:
// the Connection, the lazily loaded Resource, paginated collections and the
// Settings view of configuration resources.
//
// # Connection
//
// A Connection holds the base URL, optional Basic credentials and the HTTP
// transport. It is immutable and safe to share:
//
//	conn, err := restbase.NewConnection(
//		"http://localhost:8001/3.1/",
//		restbase.WithBasicAuth("restadmin", "restpass"),
//		restbase.WithLogger(logger),
//	)
//
// Request bodies are form encoded. Responses are decoded as JSON with numbers
// kept as json.Number.
//
// # Resources
//
// Resource[T] fetches its JSON body on first access and keeps it. Two reads
// of declared properties cause at most one GET. Proxies built from collection
// entries are seeded with the inline representation and never fetch.
//
// # Error Handling
//
//   - ErrInvalidConfig: bad base URL or incomplete credentials
//   - ErrInvalidPage: non-positive page size or number
//   - HTTPError: the service answered outside 2xx
//   - ConnectionError: the service could not be reached
//   - UnknownFieldError: an undeclared property was requested
//
// Match them with errors.Is and errors.As:
//
//	var httpErr *restbase.HTTPError
//	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
//		// gone
//	}
package restbase
