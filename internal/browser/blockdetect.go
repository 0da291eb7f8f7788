package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockType describes the kind of interstitial page served instead of results.
type BlockType string

const (
	BlockNone      BlockType = ""
	BlockChallenge BlockType = "challenge"
	BlockCaptcha   BlockType = "captcha"
	BlockJSShell   BlockType = "js_shell"
)

// DetectBlock checks rendered page HTML for signs of anti-bot protection. The
// browser has already run scripts, so a page still showing these markers is
// not going to turn into a result page.
//
// formSelectors name elements of the search form itself. A captcha widget on
// a page that still carries the form is part of that form, not an
// interstitial, and does not count as a block.
func DetectBlock(html string, formSelectors ...string) (bool, BlockType) {
	lower := strings.ToLower(html)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockChallenge
	}

	if strings.Contains(lower, "captcha") && !hasAny(html, formSelectors) {
		return true, BlockCaptcha
	}

	if len(html) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

func hasAny(html string, selectors []string) bool {
	if len(selectors) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	for _, sel := range selectors {
		if sel != "" && doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
