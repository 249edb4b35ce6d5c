package node

import "fmt"

// Attrs is the attribute set of a node.
type Attrs map[string]string

// Node is a single element of an attributed tree.
//
// Only one of Content or Data is meaningful for a given node: Content holds
// nested child nodes, Data holds raw text bytes.
type Node struct {
	Tag     string
	Attrs   Attrs
	Content []*Node
	Data    []byte
}

// New creates a node with the given tag, attributes and children.
func New(tag string, attrs Attrs, children ...*Node) *Node {
	if attrs == nil {
		attrs = Attrs{}
	}
	return &Node{
		Tag:     tag,
		Attrs:   attrs,
		Content: children,
	}
}

// NewText creates a leaf node whose content is the UTF-8 bytes of text.
func NewText(tag string, attrs Attrs, text string) *Node {
	n := New(tag, attrs)
	n.Data = []byte(text)
	return n
}

// Attr returns the named attribute, or the empty string when the node is nil
// or the attribute is unset.
func (n *Node) Attr(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(key string) bool {
	if n == nil || n.Attrs == nil {
		return false
	}
	_, ok := n.Attrs[key]
	return ok
}

// Child returns the first direct child with the given tag, or nil.
// It is safe to call on a nil node.
func (n *Node) Child(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Content {
		if c != nil && c.Tag == tag {
			return c
		}
	}
	return nil
}

// Children returns every direct child with the given tag in document order.
func (n *Node) Children(tag string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Content {
		if c != nil && c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the node's raw content decoded as text.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return string(n.Data)
}

// ChildText returns the text content of the first child with the given tag.
// A missing child yields the empty string.
func (n *Node) ChildText(tag string) string {
	return n.Child(tag).Text()
}

// Wrap places children inside a synthetic container node. It is used to feed
// a node extracted from a bulk response to code that expects a full response.
func Wrap(tag string, children ...*Node) *Node {
	return New(tag, Attrs{}, children...)
}

// String renders the node in a compact XML-like form for logs and test
// failure messages.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	s := "<" + n.Tag
	for _, k := range sortedKeys(n.Attrs) {
		s += fmt.Sprintf(" %s=%q", k, n.Attrs[k])
	}
	switch {
	case len(n.Content) > 0:
		s += ">"
		for _, c := range n.Content {
			s += c.String()
		}
		s += "</" + n.Tag + ">"
	case len(n.Data) > 0:
		s += ">" + string(n.Data) + "</" + n.Tag + ">"
	default:
		s += "/>"
	}
	return s
}
