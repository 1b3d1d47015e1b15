package middleware

// HTTP header names.
const (
	HeaderContentType = "Content-Type"
	HeaderXRequestID  = "X-Request-ID"
)

// ContentTypeText matches the plain-text bodies of the auth endpoints.
const ContentTypeText = "text/plain; charset=utf-8"

// maxRequestIDLength bounds request ids accepted from the proxy.
const maxRequestIDLength = 128
