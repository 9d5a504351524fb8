package checkout

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExtractHiddenFields returns name -> value for every hidden input in
// fragment. Later inputs win over earlier ones with the same name.
func ExtractHiddenFields(fragment string) (map[string]string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "form",
		DataAtom: atom.Form,
	})
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Input {
			var typ, name, value string
			for _, a := range n.Attr {
				switch a.Key {
				case "type":
					typ = a.Val
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				}
			}
			if strings.EqualFold(typ, "hidden") && name != "" {
				fields[name] = value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return fields, nil
}
