// Package pipeline implements the HTTP handler chain used by the REST client.
//
// A request flows through the stages outermost first:
//
//	RouteRateLimiter -> GlobalRateLimiter -> Retry5xx -> Transport
//
// Each stage implements Handler and may delay, retry or throttle the request
// before delegating to the next one. Rate limiting is flow control rather than
// an error: it is observable only through the RequestDeferred and RateLimited
// events emitted on the stage's event emitter.
package pipeline
