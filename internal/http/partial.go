package httpx

import (
	"net/http"
	"net/url"
	"strings"
)

// Partial-render requests fetch a page fragment rather than a full document.
// They are marked either by the htmx request header or by the framework's
// query marker on programmatic fragment fetches. Redirecting one corrupts the
// client's view of the page tree, so both guards must always let them pass.
const partialQueryMarker = "_partial"

// skipRedirectMarker is an explicit override that suppresses guard redirects
// for one request.
const skipRedirectMarker = "skip_redirect"

// IsHTMX reports whether the request was initiated by htmx (Hx-Request: true).
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Hx-Request"), "true")
}

// IsPartialRender reports whether the request asks for a page fragment.
func IsPartialRender(r *http.Request) bool {
	return IsHTMX(r) || r.URL.Query().Has(partialQueryMarker)
}

// HasSkipRedirect reports whether the skip-redirect override is present.
func HasSkipRedirect(r *http.Request) bool {
	return r.URL.Query().Has(skipRedirectMarker)
}

// SetHXRedirect instructs htmx to navigate the browser to the given URL.
func SetHXRedirect(w http.ResponseWriter, url string) { w.Header().Set("Hx-Redirect", url) }

// loginURL builds the login redirect target carrying the original path.
func loginURL(redirectPath string) string {
	u := url.URL{Path: "/login"}
	q := url.Values{}
	q.Set("redirect", redirectPath)
	u.RawQuery = q.Encode()
	return u.String()
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
