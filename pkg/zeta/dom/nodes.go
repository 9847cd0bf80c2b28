package dom

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}

func attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// setTextContent replaces every child of n with a single text node.
func setTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// cloneNode deep-copies n into a detached node.
func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}

func insertAfter(ref, n *html.Node) {
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func toggleClass(n *html.Node, name string, on bool) {
	v, _ := attr(n, "class")
	classes := strings.Fields(v)
	idx := -1
	for i, c := range classes {
		if c == name {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		classes = append(classes, name)
	case !on && idx >= 0:
		classes = append(classes[:idx], classes[idx+1:]...)
	default:
		return
	}
	if len(classes) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(classes, " "))
}

type declaration struct {
	property string
	value    string
}

func parseStyle(s string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		prop = strings.TrimSpace(prop)
		if !ok || prop == "" {
			continue
		}
		decls = append(decls, declaration{property: strings.ToLower(prop), value: strings.TrimSpace(val)})
	}
	return decls
}

// setStyle sets one inline style property. An empty value removes it.
func setStyle(n *html.Node, property, value string) {
	property = cssProperty(property)
	current, _ := attr(n, "style")
	decls := parseStyle(current)

	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.property == property {
			if value == "" || replaced {
				continue
			}
			d.value = value
			replaced = true
		}
		out = append(out, d)
	}
	if value != "" && !replaced {
		out = append(out, declaration{property: property, value: value})
	}

	if len(out) == 0 {
		removeAttr(n, "style")
		return
	}
	parts := make([]string, len(out))
	for i, d := range out {
		parts[i] = d.property + ": " + d.value
	}
	setAttr(n, "style", strings.Join(parts, "; "))
}

func styleValue(n *html.Node, property string) string {
	property = cssProperty(property)
	current, _ := attr(n, "style")
	for _, d := range parseStyle(current) {
		if d.property == property {
			return d.value
		}
	}
	return ""
}

// cssProperty accepts both backgroundColor and background-color.
func cssProperty(name string) string {
	name = strings.TrimSpace(name)
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// splitTopLevel splits s on sep, ignoring separators inside quotes,
// parentheses and brackets.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	var quote rune
	escaped := false
	start := 0
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == '\\' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
