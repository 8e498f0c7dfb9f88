package middleware

import "net/http"

// SecurityHeaders returns middleware that sets HTTP security headers on every
// response. When tlsEnabled is true, Strict-Transport-Security (HSTS) is
// included; it is omitted on plain HTTP to avoid browsers caching an HSTS
// policy for a host that does not support TLS.
func SecurityHeaders(tlsEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			// Prevent MIME type sniffing.
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking. The service serves JSON and call-control
			// XML, never frameable HTML, so DENY is safe.
			h.Set("X-Frame-Options", "DENY")

			// Limit referrer information leaked to other origins.
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// HSTS, only sent when serving over TLS.
			if tlsEnabled {
				// max-age=63072000 is 2 years; includeSubDomains ensures
				// all subdomains also require HTTPS.
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
