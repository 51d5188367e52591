package tracking

import (
	"fmt"
	"net/url"
	"strings"
)

// Injector rewrites outgoing email HTML to route engagement through the
// tracker: an invisible pixel for opens and wrapped links for clicks.
type Injector struct {
	baseURL string
}

// NewInjector creates an injector. baseURL is the public root of the
// tracking endpoints, without a trailing slash.
func NewInjector(baseURL string) *Injector {
	return &Injector{baseURL: strings.TrimRight(baseURL, "/")}
}

// OpenPixelURL returns the pixel URL for a delivery record.
func (in *Injector) OpenPixelURL(recordID string) string {
	return fmt.Sprintf("%s/tracking/open/%s", in.baseURL, recordID)
}

// ClickURL returns the tracked redirect URL for a destination link.
func (in *Injector) ClickURL(recordID, destURL string) string {
	return fmt.Sprintf("%s/tracking/click/%s?url=%s", in.baseURL, recordID, url.QueryEscape(destURL))
}

// InjectTracking rewrites an email body: the open pixel goes just before
// </body> (appended if the body tag is missing), and every absolute http(s)
// href is wrapped in a click URL. Links already pointing at the tracker are
// left alone.
func (in *Injector) InjectTracking(html, recordID string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`,
		in.OpenPixelURL(recordID))
	if strings.Contains(html, "</body>") {
		html = strings.Replace(html, "</body>", pixel+"</body>", 1)
	} else {
		html += pixel
	}

	return in.replaceLinks(html, recordID)
}

// replaceLinks wraps href targets in tracked click URLs. Simple string
// scanning, not an HTML parser; it matches the double-quoted href form our
// templates emit.
func (in *Injector) replaceLinks(html, recordID string) string {
	var b strings.Builder
	rest := html
	for {
		start := strings.Index(rest, `href="http`)
		if start == -1 {
			break
		}
		start += len(`href="`)

		end := strings.Index(rest[start:], `"`)
		if end == -1 {
			break
		}

		originalURL := rest[start : start+end]
		b.WriteString(rest[:start])

		// Already-tracked links stay as they are.
		if strings.Contains(originalURL, "/tracking/") {
			b.WriteString(originalURL)
		} else {
			b.WriteString(in.ClickURL(recordID, originalURL))
		}
		rest = rest[start+end:]
	}
	b.WriteString(rest)
	return b.String()
}
