package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Node is a schema-free element: a field may be absent, appear once, or repeat.
// Accessors always normalize to a slice or the first match so callers never branch on arity.
type Node struct {
	Name     string
	Attrs    map[string]string
	Content  string
	Children []*Node
}

// Parse converts already-decoded markup into a tree rooted at the document element.
func Parse(text string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	// The text is decoded already; the prolog's declared charset is irrelevant.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		root  *Node
		stack []*Node
		texts []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read xml token: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %q", t.Name.Local)
			}
			n := stack[len(stack)-1]
			n.Content = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}

	if root == nil {
		return nil, errors.New("document has no root element")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element %q", stack[len(stack)-1].Name)
	}
	return root, nil
}

// All returns every direct child with the given name. Safe on a nil receiver.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Has reports whether a direct child with the given name exists.
func (n *Node) Has(name string) bool {
	return n.Child(name) != nil
}

// Path follows the first match at every step.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Find returns every node reachable through the path, fanning out over repeated elements.
func (n *Node) Find(names ...string) []*Node {
	if n == nil {
		return nil
	}
	level := []*Node{n}
	for _, name := range names {
		var next []*Node
		for _, cur := range level {
			next = append(next, cur.All(name)...)
		}
		if len(next) == 0 {
			return nil
		}
		level = next
	}
	return level
}

// Text returns the trimmed text at the path, or "" when any step is absent.
func (n *Node) Text(names ...string) string {
	target := n.Path(names...)
	if target == nil {
		return ""
	}
	return target.Content
}
