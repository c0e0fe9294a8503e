// Package rest provides a client for the Aula REST API.
//
// Every request goes through a pipeline.Handler chain that applies per-route
// and global rate limits and retries server errors. Non-2xx responses are
// returned as *Error values classified by Kind:
//
//	user, err := c.GetCurrentUser(ctx)
//	if errors.Is(err, rest.ErrUnauthorized) {
//		// token rejected
//	}
//
// Lookups of a single entity return nil without an error when the server
// answers 404 Not Found.
package rest
