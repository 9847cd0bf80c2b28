// Package dom connects a zeta engine to an HTML document. Scan walks the
// tree for z:<name> and z="name: arg; ..." directives and registers the
// bindings that keep the tree in sync with engine state. The tree is a
// golang.org/x/net/html node tree; rendering it at any point yields the
// current view.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chosenoffset/zeta/pkg/zeta/actions"
)

// Document is a parsed HTML tree plus the event handlers its directives
// registered.
type Document struct {
	root    *html.Node
	actions *actions.Registry
	nextID  int
}

// Parse reads a full HTML document or fragment. Fragments are wrapped in
// html/head/body the way browsers do.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root, actions: actions.NewRegistry()}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or the document node when there is none.
func (d *Document) Body() *html.Node {
	var body *html.Node
	walk(d.root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.root
	}
	return body
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// BodyHTML renders the children of the body element only.
func (d *Document) BodyHTML() string {
	var buf bytes.Buffer
	for c := d.Body().FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// Actions returns the registry holding the document's event handlers.
func (d *Document) Actions() *actions.Registry {
	return d.actions
}

// Dispatch fires eventType on the element whose data-zeta-id is id.
func (d *Document) Dispatch(id string, eventType actions.EventType, value any) error {
	return d.actions.Dispatch(d.actions.NewEvent(eventType, id, value))
}

// Element finds the attached element whose data-zeta-id is id.
func (d *Document) Element(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if v, ok := attr(n, IDAttr); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// ensureID gives n a data-zeta-id, reusing its id attribute when it has one.
func (d *Document) ensureID(n *html.Node) string {
	if v, ok := attr(n, IDAttr); ok {
		return v
	}
	id, ok := attr(n, "id")
	if !ok || id == "" {
		d.nextID++
		id = fmt.Sprintf("z%d", d.nextID)
	}
	setAttr(n, IDAttr, id)
	return id
}
