package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// TrackingPixelURL builds the open-tracking pixel URL for a recipient token.
func TrackingPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/track/open/%s", baseURL, token)
}

// ClickTrackURL wraps a destination URL in the click-tracking redirect.
func ClickTrackURL(baseURL, token, originalURL string) string {
	return fmt.Sprintf("%s/track/click/%s?url=%s", baseURL, token, url.QueryEscape(originalURL))
}

// UnsubscribeURL builds the one-click unsubscribe link for a recipient token.
func UnsubscribeURL(baseURL, token string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", baseURL, token)
}

// InjectTracking rewrites an HTML body for one recipient: links are wrapped
// in the click redirect, an invisible open pixel is appended, and the
// unsubscribe footer is added. Each feature is driven by the campaign's
// tracking flags.
func InjectTracking(htmlContent, baseURL, token string, trackOpens, trackClicks, unsubscribeLink bool) string {
	out := htmlContent

	if trackClicks {
		out = injectClickTracking(out, baseURL, token)
	}

	if unsubscribeLink && token != "" {
		out += fmt.Sprintf(
			`<p style="font-size:12px;color:#7f8c8d;text-align:center"><a href="%s">Unsubscribe</a></p>`,
			UnsubscribeURL(baseURL, token))
	}

	if trackOpens {
		out += fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
			TrackingPixelURL(baseURL, token))
	}

	return out
}

func injectClickTracking(html, baseURL, token string) string {
	// Simplified rewrite; an HTML parser would be sturdier but campaign
	// bodies come from our own editor.
	startTag := `<a href="`
	endTag := `"`
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		if strings.Contains(originalURL, "/unsubscribe/") || strings.Contains(originalURL, "/track/") {
			offset = endIdx
			continue
		}
		trackedURL := ClickTrackURL(baseURL, token, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}
