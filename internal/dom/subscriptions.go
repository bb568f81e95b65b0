package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Locators are ordered fallback lists used to read subscription rows out of
// rendered markup. Each entry is either a tag name ("h3") or a class-name
// fragment; the first locator that yields text wins. The admin portal's
// markup drifts between rollouts, hence the redundancy.
type Locators struct {
	Rows          []string
	Titles        []string
	ExpiryMarkers []string
	ExpiryFields  []string
	StripPrefixes []string
}

// Row is one rendered subscription entry.
type Row struct {
	Title  string
	Expiry string
}

// FindSubscription scans htmlContent for the first row whose title contains
// target (case-sensitive substring) and that yields readable expiry text.
// The second return is false when no such row exists; malformed markup is
// the only error condition, and html.Parse barely ever produces one.
func FindSubscription(htmlContent, target string, loc Locators) (Row, bool, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return Row{}, false, err
	}

	for _, rowNode := range collectMatches(doc, loc.Rows) {
		title := firstLocatedText(rowNode, loc.Titles)
		if title == "" || !strings.Contains(title, target) {
			continue
		}
		expiry := expiryText(rowNode, loc)
		if expiry == "" {
			continue
		}
		return Row{Title: title, Expiry: expiry}, true, nil
	}
	return Row{}, false, nil
}

// expiryText tries the free-text marker search first, then the structured
// date-field locators, and strips known prefix phrases from the result.
func expiryText(row *html.Node, loc Locators) string {
	text := markerText(row, loc.ExpiryMarkers)
	if text == "" {
		text = firstLocatedText(row, loc.ExpiryFields)
	}
	return StripExpiryPrefixes(text, loc.StripPrefixes)
}

// StripExpiryPrefixes removes the first matching prefix phrase. Exposed so
// the expiry step can normalize text captured through other paths too.
func StripExpiryPrefixes(text string, prefixes []string) string {
	text = strings.TrimSpace(text)
	for _, p := range prefixes {
		if strings.HasPrefix(text, p) {
			return strings.TrimSpace(strings.TrimPrefix(text, p))
		}
	}
	return text
}

// collectMatches walks the tree and returns every element matched by any of
// the locators, in document order.
func collectMatches(n *html.Node, locators []string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && matchesAny(node, locators) {
			out = append(out, node)
			// matched rows are not nested inside each other in practice;
			// still descend in case a container class doubles as a row class
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func firstLocatedText(n *html.Node, locators []string) string {
	for _, want := range locators {
		if node := firstMatch(n, want); node != nil {
			if text := nodeText(node); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstMatch(n *html.Node, locator string) *html.Node {
	if n.Type == html.ElementNode && matches(n, locator) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstMatch(c, locator); found != nil {
			return found
		}
	}
	return nil
}

// markerText returns the first text node containing any marker, whole and
// trimmed, so "Expires on 2026-09-30" survives intact for prefix stripping.
func markerText(n *html.Node, markers []string) string {
	if n.Type == html.TextNode {
		trimmed := strings.TrimSpace(n.Data)
		for _, m := range markers {
			if m != "" && strings.Contains(trimmed, m) {
				return trimmed
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := markerText(c, markers); text != "" {
			return text
		}
	}
	return ""
}

func matchesAny(n *html.Node, locators []string) bool {
	for _, l := range locators {
		if matches(n, l) {
			return true
		}
	}
	return false
}

func matches(n *html.Node, locator string) bool {
	if locator == "" {
		return false
	}
	if n.Data == locator {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "class" && containsClass(a.Val, locator) {
			return true
		}
	}
	return false
}

func containsClass(classAttr, fragment string) bool {
	for _, c := range strings.Fields(classAttr) {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			trimmed := strings.TrimSpace(node.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(trimmed)
			}
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
