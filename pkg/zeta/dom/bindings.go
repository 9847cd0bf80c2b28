package dom

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chosenoffset/zeta/pkg/zeta"
	"github.com/chosenoffset/zeta/pkg/zeta/actions"
	"github.com/chosenoffset/zeta/pkg/zeta/logging"
	"github.com/chosenoffset/zeta/pkg/zeta/parser"
)

// Engine is the part of *zeta.Engine the bindings use.
type Engine interface {
	Evaluate(expr string) any
	Execute(code string) any
	Read(key string) (any, bool)
	Write(key string, value any)
	Bind(key string, cb zeta.Callback)
	BindToDependencies(expr string, cb zeta.Callback)
	Report(err *zeta.Error)
	Limits() *zeta.Limits
	Config() zeta.ConfigureOptions
	Logger() logging.Logger
	IsInitialized() bool
}

type binder struct {
	doc    *Document
	engine Engine
}

func (b *binder) malformed(directive, arg, msg string) {
	b.engine.Report(&zeta.Error{
		Kind:   zeta.MalformedDirectiveError,
		Source: directive + ": " + arg,
		Err:    errors.New(msg),
	})
}

func (b *binder) bindText(el *html.Node, expr string) {
	update := func(_, _ any) {
		text := zeta.ToString(b.engine.Evaluate(expr))
		if textContent(el) != text {
			setTextContent(el, text)
		}
	}
	update(nil, nil)
	b.engine.BindToDependencies(expr, update)
}

func (b *binder) bindShow(el *html.Node, expr string) {
	update := func(_, _ any) {
		if zeta.Truthy(b.engine.Evaluate(expr)) {
			setStyle(el, "display", "")
		} else {
			setStyle(el, "display", "none")
		}
	}
	update(nil, nil)
	b.engine.BindToDependencies(expr, update)
}

// bindIf swaps el for a <!--z:if--> placeholder while expr is falsy.
func (b *binder) bindIf(el *html.Node, expr string) {
	placeholder := &html.Node{Type: html.CommentNode, Data: "z:if"}
	visible := el.Parent != nil

	update := func(_, _ any) {
		show := zeta.Truthy(b.engine.Evaluate(expr))
		switch {
		case show && !visible:
			parent := placeholder.Parent
			if parent == nil {
				return
			}
			parent.InsertBefore(el, placeholder)
			parent.RemoveChild(placeholder)
			visible = true
		case !show && visible:
			parent := el.Parent
			if parent == nil {
				return
			}
			parent.InsertBefore(placeholder, el)
			parent.RemoveChild(el)
			visible = false
		}
	}
	update(nil, nil)
	b.engine.BindToDependencies(expr, update)
}

type classRule struct {
	classes   []string
	condition string
}

// bindClass handles "a b: cond, c: other" rules. Each class set follows the
// truthiness of its condition.
func (b *binder) bindClass(el *html.Node, arg string) {
	var rules []classRule
	for _, rule := range splitTopLevel(arg, ',') {
		names, cond, ok := strings.Cut(rule, ":")
		cond = strings.TrimSpace(cond)
		if !ok || cond == "" {
			b.malformed("class", rule, `class rule must look like "name: condition"`)
			continue
		}
		rules = append(rules, classRule{classes: strings.Fields(names), condition: cond})
	}
	if len(rules) == 0 {
		return
	}

	update := func(_, _ any) {
		for _, r := range rules {
			on := zeta.Truthy(b.engine.Evaluate(r.condition))
			for _, name := range r.classes {
				toggleClass(el, name, on)
			}
		}
	}
	update(nil, nil)
	for _, r := range rules {
		b.engine.BindToDependencies(r.condition, update)
	}
}

type styleRule struct {
	property   string
	expression string
}

// bindStyle handles "property: expr, ..." rules. Falsy values remove the
// property.
func (b *binder) bindStyle(el *html.Node, arg string) {
	var rules []styleRule
	for _, rule := range splitTopLevel(arg, ',') {
		prop, expr, ok := strings.Cut(rule, ":")
		prop, expr = strings.TrimSpace(prop), strings.TrimSpace(expr)
		if !ok || prop == "" || expr == "" {
			b.malformed("style", rule, `style rule must look like "property: expression"`)
			continue
		}
		rules = append(rules, styleRule{property: prop, expression: expr})
	}
	if len(rules) == 0 {
		return
	}

	update := func(_, _ any) {
		for _, r := range rules {
			v := b.engine.Evaluate(r.expression)
			value := ""
			if zeta.Truthy(v) {
				value = zeta.ToString(v)
			}
			setStyle(el, r.property, value)
		}
	}
	update(nil, nil)
	for _, r := range rules {
		b.engine.BindToDependencies(r.expression, update)
	}
}

// bindModel keeps a form control and a state key in sync both ways. Input
// and change events on the control write the key.
func (b *binder) bindModel(el *html.Node, key string) {
	if !parser.IsIdentifier(key) {
		b.malformed("model", key, "model target must be a state key")
		return
	}

	if v, ok := b.engine.Read(key); ok {
		setControlValue(el, v)
	}
	b.engine.Bind(key, func(newValue, _ any) {
		setControlValue(el, newValue)
	})

	id := b.doc.ensureID(el)
	if b.doc.actions.Has(id, actions.InputEvent) {
		return
	}
	handler := actions.HandlerFunc(func(ev actions.Event) error {
		b.engine.Write(key, controlValue(el, ev.Value))
		return nil
	})
	b.doc.actions.Register(id, actions.InputEvent, handler)
	b.doc.actions.Register(id, actions.ChangeEvent, handler)
}

func isCheckbox(el *html.Node) bool {
	t, _ := attr(el, "type")
	return el.DataAtom == atom.Input && (strings.EqualFold(t, "checkbox") || strings.EqualFold(t, "radio"))
}

func setControlValue(el *html.Node, v any) {
	if isCheckbox(el) {
		if zeta.Truthy(v) {
			setAttr(el, "checked", "")
		} else {
			removeAttr(el, "checked")
		}
		return
	}

	text := ""
	if zeta.Truthy(v) {
		text = zeta.ToString(v)
	}
	switch el.DataAtom {
	case atom.Textarea:
		if textContent(el) != text {
			setTextContent(el, text)
		}
	case atom.Select:
		walk(el, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.DataAtom == atom.Option {
				val, ok := attr(n, "value")
				if !ok {
					val = strings.TrimSpace(textContent(n))
				}
				if val == text {
					setAttr(n, "selected", "")
				} else {
					removeAttr(n, "selected")
				}
				return false
			}
			return true
		})
	default:
		setAttr(el, "value", text)
	}
}

func controlValue(el *html.Node, v any) any {
	if isCheckbox(el) {
		return zeta.Truthy(v)
	}
	return zeta.ToString(v)
}

// bindWatch evaluates expr whenever its dependencies change and then runs
// the element's z:watch-trigger code, if any. It does not run at scan time.
func (b *binder) bindWatch(el *html.Node, expr string) {
	trigger, _ := attr(el, WatchTriggerAttr)
	trigger = strings.TrimSpace(trigger)

	b.engine.BindToDependencies(expr, func(_, _ any) {
		b.engine.Evaluate(expr)
		if trigger != "" {
			b.engine.Execute(trigger)
		}
	})
}

// bindClick runs code on every click. An element gets one click handler
// even when it carries both the prefixed and the unified form.
func (b *binder) bindClick(el *html.Node, code string) {
	id := b.doc.ensureID(el)
	if b.doc.actions.Has(id, actions.ClickEvent) {
		return
	}
	b.doc.actions.Register(id, actions.ClickEvent, actions.HandlerFunc(func(actions.Event) error {
		b.engine.Execute(code)
		return nil
	}))
}
