package dom

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chosenoffset/zeta/pkg/zeta"
)

var eachPattern = regexp.MustCompile(`^(.+?)\s+in\s+(.+)$`)

// ListRenderer keeps the siblings after a <!--z:each--> marker in step with
// an array expression. Every update tears down what the previous one
// inserted and clones the template once per element.
type ListRenderer struct {
	engine    Engine
	itemName  string
	arrayExpr string
	marker    *html.Node
	template  []*html.Node
	rendered  []*html.Node
}

// NewListRenderer detaches el, puts a marker in its place, renders once and
// binds the renderer to the array expression's dependencies. directiveAttr
// is stripped from the template copy. A <template> element contributes its
// children as a multi-root fragment.
func NewListRenderer(engine Engine, el *html.Node, arg, directiveAttr string) (*ListRenderer, error) {
	m := eachPattern.FindStringSubmatch(strings.TrimSpace(arg))
	if m == nil {
		return nil, &zeta.Error{
			Kind:   zeta.MalformedDirectiveError,
			Source: arg,
			Err:    errors.New(`each expects "item in items"`),
		}
	}
	if el.Parent == nil {
		return nil, &zeta.Error{
			Kind:   zeta.MalformedDirectiveError,
			Source: arg,
			Err:    errors.New("each element is not attached to the document"),
		}
	}

	r := &ListRenderer{
		engine:    engine,
		itemName:  strings.TrimSpace(m[1]),
		arrayExpr: strings.TrimSpace(m[2]),
		marker:    &html.Node{Type: html.CommentNode, Data: "z:each"},
	}

	parent := el.Parent
	parent.InsertBefore(r.marker, el)
	parent.RemoveChild(el)

	if el.DataAtom == atom.Template {
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
				continue
			}
			r.template = append(r.template, cloneNode(c))
		}
	} else {
		removeAttr(el, directiveAttr)
		r.template = []*html.Node{el}
	}

	r.Update()
	engine.BindToDependencies(r.arrayExpr, func(_, _ any) { r.Update() })
	return r, nil
}

// ItemName returns the iteration variable.
func (r *ListRenderer) ItemName() string { return r.itemName }

// Expr returns the array expression.
func (r *ListRenderer) Expr() string { return r.arrayExpr }

// Len returns how many nodes the last update inserted.
func (r *ListRenderer) Len() int { return len(r.rendered) }

// Update re-evaluates the array expression and rebuilds the list. A result
// that is not array-shaped renders nothing.
func (r *ListRenderer) Update() {
	for _, n := range r.rendered {
		detach(n)
	}
	r.rendered = r.rendered[:0]

	items, ok := zeta.AsSlice(r.engine.Evaluate(r.arrayExpr))
	if !ok || r.marker.Parent == nil {
		return
	}
	if limits := r.engine.Limits(); limits != nil && limits.MaxListItems > 0 && len(items) > limits.MaxListItems {
		r.engine.Report(&zeta.Error{
			Kind:   zeta.EvaluationError,
			Source: r.arrayExpr,
			Err:    fmt.Errorf("list has %d items, rendering the first %d", len(items), limits.MaxListItems),
		})
		items = items[:limits.MaxListItems]
	}

	itemToken := "{{" + r.itemName + "}}"
	indexToken := "{{" + r.itemName + "Index}}"
	prev := r.marker
	for i, item := range items {
		value, index := zeta.ToString(item), strconv.Itoa(i)
		for _, tmpl := range r.template {
			clone := cloneNode(tmpl)
			if clone.Type == html.ElementNode {
				setAttr(clone, EachAttr, r.itemName)
			}
			walk(clone, func(n *html.Node) bool {
				if n.Type == html.TextNode {
					n.Data = strings.ReplaceAll(n.Data, itemToken, value)
					n.Data = strings.ReplaceAll(n.Data, indexToken, index)
				}
				return true
			})
			insertAfter(prev, clone)
			prev = clone
			r.rendered = append(r.rendered, clone)
		}
	}
}
