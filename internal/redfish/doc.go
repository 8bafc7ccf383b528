// Package redfish provides the HTTP transport used to talk to Redfish and
// Swordfish services.
//
// A Client is bound to one service (one base URI). It carries the session
// token, optional basic-auth credentials, custom headers, and a rate limiter
// for fragile BMCs, and can route traffic through a SOCKS5 proxy or skip TLS
// verification for the self-signed certificates most BMCs ship with.
//
// Credentials and custom headers are only attached to requests whose host
// equals the base URI's host, including requests issued while following
// redirects. A link pointing at another host never receives the token.
//
// The package is designed to be used with dependency injection: create one
// Client per target and pass it to the crawler rather than using global
// session state. Concurrent use of one Client is safe.
//
// # Usage
//
//	client, err := redfish.NewClient("https://10.0.0.5",
//	    redfish.WithInsecureSkipVerify(true),
//	    redfish.WithRateLimit(5, 2))
//	if err != nil {
//	    return err
//	}
//	if err := client.Login(ctx, user, pass); err != nil {
//	    return err
//	}
//	defer client.Logout(context.Background())
//
//	resp, err := client.Get(ctx, "/redfish/v1/Systems")
package redfish
