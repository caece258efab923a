// Package api is the HTTP client for the Coretex.ai REST API.
//
// All endpoints live under <serverUrl>api/v1/. Requests carry the API
// token in the "api-token" header. A request answered with 401 triggers a
// token refresh (POST user/refresh with the refresh token) and is repeated
// only when the refresh succeeded; 500 and 503 answers are repeated as
// well. A request is repeated at most MaxRetryCount times. Transport
// failures (connection refused, timeouts) are retried the same number of
// times before ErrRequestFailed is returned.
//
// A Response whose status is not 2xx is not an error by itself: callers
// inspect Response.HasFailed and usually wrap it in a RequestError.
package api
