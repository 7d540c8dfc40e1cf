// Package transport delivers asset payloads to the backend API as multipart
// uploads with per-call timeouts and idempotency keys.
package transport
