package dom

import (
	"errors"
	"strings"

	"golang.org/x/net/html"

	"github.com/chosenoffset/zeta/pkg/zeta"
)

const (
	// Prefix starts every single-directive attribute, as in z:text.
	Prefix = "z:"
	// UnifiedAttr holds several directives: z="text: name; click: n++".
	UnifiedAttr = "z"
	// IDAttr identifies elements that receive events.
	IDAttr = "data-zeta-id"
	// EachAttr tags the roots a list renderer inserted.
	EachAttr = "data-zeta-each"
	// WatchTriggerAttr holds code run after a watch expression re-evaluates.
	WatchTriggerAttr = "z:watch-trigger"
)

// Directives lists the recognized directive names in the order Scan applies
// them.
var Directives = []string{"init", "click", "text", "model", "watch", "if", "show", "class", "style", "each"}

// ScanOptions tune a scan.
type ScanOptions struct {
	// Root limits the scan to a subtree; nil scans the whole document.
	Root *html.Node
}

// ScanResult summarizes what a scan bound.
type ScanResult struct {
	Directives int
	Lists      []*ListRenderer
}

// Scan registers a binding for every directive in the document. Prefixed
// attributes are applied first, one directive name at a time in Directives
// order, then unified z attributes unless the engine is configured with
// RequirePrefix. Descendants of an each element belong to its template and
// are not scanned. Malformed directives are reported through the engine and
// skipped.
func Scan(doc *Document, engine Engine, optFns ...func(o *ScanOptions)) (*ScanResult, error) {
	if !engine.IsInitialized() {
		return nil, zeta.ErrNotInitialized
	}
	opts := ScanOptions{Root: doc.Root()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Root == nil {
		opts.Root = doc.Root()
	}

	s := &scanner{
		binder:  binder{doc: doc, engine: engine},
		unified: !engine.Config().RequirePrefix,
		result:  &ScanResult{},
	}
	elements := s.collect(opts.Root)

	for _, name := range Directives {
		key := Prefix + name
		for _, el := range elements {
			arg, ok := attr(el, key)
			if arg = strings.TrimSpace(arg); !ok || arg == "" {
				continue
			}
			s.apply(el, name, arg, key)
		}
	}

	if s.unified {
		for _, el := range elements {
			value, ok := attr(el, UnifiedAttr)
			if !ok {
				continue
			}
			for _, cmd := range splitTopLevel(value, ';') {
				name, arg, found := strings.Cut(strings.TrimSpace(cmd), ":")
				if !found {
					continue
				}
				name, arg = strings.TrimSpace(name), strings.TrimSpace(arg)
				if arg == "" {
					continue
				}
				s.apply(el, name, arg, UnifiedAttr)
			}
		}
	}

	engine.Logger().Debug("scan complete", "elements", len(elements), "directives", s.result.Directives, "lists", len(s.result.Lists))
	return s.result, nil
}

type scanner struct {
	binder
	unified bool
	result  *ScanResult
}

// collect returns the elements under root in document order, stopping at
// each elements.
func (s *scanner) collect(root *html.Node) []*html.Node {
	var elements []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		elements = append(elements, n)
		return !s.hasEach(n)
	})
	return elements
}

func (s *scanner) hasEach(n *html.Node) bool {
	if _, ok := attr(n, Prefix+"each"); ok {
		return true
	}
	if !s.unified {
		return false
	}
	value, ok := attr(n, UnifiedAttr)
	if !ok {
		return false
	}
	for _, cmd := range splitTopLevel(value, ';') {
		name, _, found := strings.Cut(cmd, ":")
		if found && strings.TrimSpace(name) == "each" {
			return true
		}
	}
	return false
}

func (s *scanner) apply(el *html.Node, name, arg, attrKey string) {
	switch name {
	case "init":
		s.engine.Execute(arg)
	case "click":
		s.bindClick(el, arg)
	case "text":
		s.bindText(el, arg)
	case "model":
		s.bindModel(el, arg)
	case "watch":
		s.bindWatch(el, arg)
	case "if":
		s.bindIf(el, arg)
	case "show":
		s.bindShow(el, arg)
	case "class":
		s.bindClass(el, arg)
	case "style":
		s.bindStyle(el, arg)
	case "each":
		lr, err := NewListRenderer(s.engine, el, arg, attrKey)
		if err != nil {
			var zerr *zeta.Error
			if errors.As(err, &zerr) {
				s.engine.Report(zerr)
			}
			return
		}
		s.result.Lists = append(s.result.Lists, lr)
	default:
		s.engine.Logger().Warn("unknown directive", "name", name, "arg", arg)
		return
	}
	s.result.Directives++
}
