package verify

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripModuleScripts rewrites an HTML document the way a browser without
// ES module support sees it: <script type="module"> elements are removed
// and nomodule attributes are dropped so fallback scripts run.
func StripModuleScripts(doc []byte) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode && c.DataAtom == atom.Script {
				if isModuleScript(c) {
					n.RemoveChild(c)
					c = next
					continue
				}
				c.Attr = dropAttr(c.Attr, "nomodule")
			}
			walk(c)
			c = next
		}
	}
	walk(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	return buf.Bytes(), nil
}

func isModuleScript(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, "type") &&
			strings.EqualFold(strings.TrimSpace(a.Val), "module") {
			return true
		}
	}
	return false
}

func dropAttr(attrs []html.Attribute, key string) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if !strings.EqualFold(a.Key, key) {
			out = append(out, a)
		}
	}
	return out
}
