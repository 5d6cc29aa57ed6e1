// Package apiclient sends generic JSON requests to the julekalender backend.
//
// A Dispatcher turns an endpoint, an HTTP verb and a flat argument map into
// exactly one outbound call:
//   - GET arguments are URL-encoded into the query string (omitted when empty)
//   - every other verb carries the arguments as a JSON body
//
// Non-success responses are normalized into *APIError, whose Message is the
// server supplied "error" field or the literal "generic_error". Failures that
// never produced a usable response (unreachable server, malformed success
// body) are reported as *TransportError.
//
//	d, err := apiclient.New("http://localhost:8000")
//	result, err := d.Send(ctx, "time", http.MethodGet, nil, nil)
//
// Credentials are never looked up implicitly; callers pass an *oauth2.Token
// when the call should be authenticated.
package apiclient
