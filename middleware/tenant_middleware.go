package middleware

import (
	"net"
	"net/http"
	"strings"
)

// TenantContext extracts an explicit tenant reference from the request and
// stores it in the context for downstream feature gates. The X-Tenant header
// wins; otherwise, when baseDomain is configured, the subdomain of the Host
// header is used (acme.workdeck.example -> "acme"). Requests without either
// pass through unchanged and downstream code falls back to the credential.
func TenantContext(baseDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ref := r.Header.Get("X-Tenant"); ref != "" {
				next.ServeHTTP(w, r.WithContext(WithTenantRef(r.Context(), ref)))
				return
			}

			if baseDomain != "" {
				if sub := subdomainOf(r.Host, baseDomain); sub != "" {
					next.ServeHTTP(w, r.WithContext(WithTenantRef(r.Context(), sub)))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// subdomainOf returns the first label in front of baseDomain, or empty when
// host is not a subdomain of it.
func subdomainOf(host, baseDomain string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	baseDomain = strings.ToLower(baseDomain)

	if host == baseDomain {
		return ""
	}
	if !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}

	prefix := strings.TrimSuffix(host, "."+baseDomain)
	if strings.Contains(prefix, ".") {
		// Only direct subdomains map to tenants.
		return ""
	}
	return prefix
}
