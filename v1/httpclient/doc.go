// Package httpclient provides an HTTP client with classified retries and a
// typed middleware chain.
//
// Every call creates one RequestContext that travels through the response
// middleware and ends in a retry loop. After each attempt the response status
// is looked up in StatusSettings and transport errors in ExceptionSettings;
// the outcome is either success, an absent value (404 with NotFoundAsNil),
// a retry after a backoff delay, or an immediate failure. The loop is driven
// by github.com/sethvargo/go-retry with MaximumRetries as its retry cap.
//
// Middleware registered with Session.Use see the raw *Response and run in
// registration order, the first registered being the outermost. The package
// level Use adds a layer that may change the result type:
//
//	s := httpclient.Must(httpclient.New(httpclient.DefaultSettings()))
//	users := httpclient.Use(s, httpclient.DecodeJSON[[]User]())
//	list, err := users.Get(ctx, "https://api.example.com/users")
//
// A layer added with Use consumes the result type of the session it is given,
// so it always sits outside every layer registered before it. The last Use is
// the outermost: it runs first and receives the value built by the earlier
// layers. This ordering
// follows from the types and is the reverse of Session.Use, where the first
// registered middleware is the outermost.
package httpclient
