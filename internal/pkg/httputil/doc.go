// Package httputil provides shared HTTP response utilities for handlers.
//
// The analytics read endpoints use these helpers instead of writing raw
// http.ResponseWriter calls, so JSON formatting and error envelopes stay
// consistent. The two ingestion endpoints (pixel, click redirect) do NOT:
// their response contracts are unconditional and never carry an error body.
package httputil
