package util

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNilNode = errors.New("HTML node is nil")

// CreateDomTree reads from a reader and parses the content into an html.Node.
// It returns a body node.
func CreateDomTree(bodyReader io.Reader) (*html.Node, error) {

	parsed, err := html.ParseFragment(
		io.MultiReader(
			strings.NewReader("<body>"),
			bodyReader,
			strings.NewReader("</body>"),
		),
		&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Html,
			Data:     "html",
		},
	)

	if err == nil {
		return parsed[1], nil // [0] is head, [1] is body, we want the body node
	} else {
		return nil, err
	}
}

func renderDomTree(root *html.Node, buf *bytes.Buffer) error {
	if root == nil || buf == nil {
		return nil
	}
	for node := root.FirstChild; node != nil; node = node.NextSibling {
		err := html.Render(buf, node)
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderDomTreeToString renders an html.Node into a string.
// If an error occurs, the error string is returned.
func RenderDomTreeToString(root *html.Node) string {

	if root == nil {
		return ""
	}

	buf := &bytes.Buffer{}
	err := renderDomTree(root, buf)

	if err == nil {
		return buf.String()
	} else {
		return err.Error()
	}
}

// removeNode detaches a node from its parent.
func removeNode(node *html.Node) {
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

// SanitizeHTML parses the given HTML fragment and strips script and style
// elements along with event handler and javascript attributes. Markdown
// rendering allows inline HTML, so rendered user content goes through here.
func SanitizeHTML(fragment string) (string, error) {

	body, err := CreateDomTree(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	var remove = []*html.Node{}

	var walk func(node *html.Node)
	walk = func(node *html.Node) {

		if node.Type == html.ElementNode {

			switch node.DataAtom {
			case atom.Script, atom.Style, atom.Iframe, atom.Object, atom.Embed:
				remove = append(remove, node)
				return
			}

			var kept = node.Attr[:0]
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					continue
				}
				if strings.HasPrefix(strings.TrimSpace(strings.ToLower(attr.Val)), "javascript:") {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}

		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(body)

	for _, node := range remove {
		removeNode(node)
	}

	return RenderDomTreeToString(body), nil
}
