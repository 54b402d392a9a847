// Package relay implements the request/response message protocol between an
// injected UI and the background process.
//
// A Message names a handler by Type and an action by SubType. Handlers answer
// with a Response whose StatusCode is 200 on success; any other code marks the
// Data as failure detail. The Router dispatches messages in process and also
// serves them over HTTP; the Sender is the client side of that endpoint.
package relay
