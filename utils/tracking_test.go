package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectTrackingRewritesLinks(t *testing.T) {
	html := `<p>Hi</p><a href="https://example.com/sale">Shop</a>`

	out := InjectTracking(html, "https://app.test", "tok123", true, true, true)

	assert.Contains(t, out, "https://app.test/track/click/tok123?url=https%3A%2F%2Fexample.com%2Fsale")
	assert.Contains(t, out, "https://app.test/track/open/tok123")
	assert.Contains(t, out, "https://app.test/unsubscribe/tok123")
	assert.NotContains(t, out, `href="https://example.com/sale"`)
}

func TestInjectTrackingRespectsFlags(t *testing.T) {
	html := `<a href="https://example.com">x</a>`

	out := InjectTracking(html, "https://app.test", "tok123", false, false, false)

	assert.Equal(t, html, out)
}

func TestInjectTrackingSkipsOwnLinks(t *testing.T) {
	html := `<a href="https://app.test/unsubscribe/tok123">Unsubscribe</a>`

	out := InjectTracking(html, "https://app.test", "tok123", false, true, false)

	// The unsubscribe link must not be wrapped in the click redirect.
	assert.Equal(t, 1, strings.Count(out, "https://app.test/unsubscribe/tok123"))
	assert.NotContains(t, out, "/track/click/")
}

func TestInjectTrackingNoTokenNoFooter(t *testing.T) {
	out := InjectTracking("<p>Hi</p>", "https://app.test", "", false, false, true)
	assert.NotContains(t, out, "/unsubscribe/")
}
