// Package node implements the attributed tree used to express every
// request and response exchanged with the group service.
//
// A Node has a tag, a flat attribute map and content that is either a list
// of child nodes or raw bytes. Encoding nodes to and from the wire format is
// handled elsewhere; this package only builds trees and reads them.
//
// Example:
//
//	req := node.New("iq", node.Attrs{"type": "get", "xmlns": "w:g2", "to": groupID},
//	    node.New("query", node.Attrs{"request": "interactive"}))
//
//	group := resp.Child("group")
//	for _, p := range group.Children("participant") {
//	    fmt.Println(p.Attr("jid"))
//	}
package node
