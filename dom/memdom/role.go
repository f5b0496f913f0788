package memdom

import (
	"strconv"
	"strings"
)

// role returns the explicit or implicit ARIA role of n.
func role(n *Node) string {
	if fields := strings.Fields(n.attrs["role"]); len(fields) > 0 {
		return fields[0]
	}
	switch n.Tag {
	case "button":
		return "button"
	case "a":
		if _, ok := n.attr("href"); ok {
			return "link"
		}
	case "input":
		switch n.attrs["type"] {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit", "reset", "image":
			return "button"
		case "range":
			return "slider"
		case "search":
			return "searchbox"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	case "option":
		return "option"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "img":
		return "img"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "form":
		return "form"
	case "table":
		return "table"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "dialog":
		return "dialog"
	}
	return ""
}

// headingLevel returns the level of a heading element, or 0.
func headingLevel(n *Node) int {
	if v, ok := n.attr("aria-level"); ok {
		l, _ := strconv.Atoi(v)
		return l
	}
	if len(n.Tag) == 2 && n.Tag[0] == 'h' && n.Tag[1] >= '1' && n.Tag[1] <= '6' {
		return int(n.Tag[1] - '0')
	}
	return 0
}

// accessibleName approximates the accessible name computation: aria-label,
// then an associated label, then alt, value or placeholder of controls,
// then the text content and finally the title.
func accessibleName(root, n *Node) string {
	if v := strings.TrimSpace(n.attrs["aria-label"]); v != "" {
		return v
	}
	if labels := labelsFor(root, n); len(labels) > 0 {
		return strings.Join(labels, " ")
	}
	if n.Tag == "img" {
		if v := strings.TrimSpace(n.attrs["alt"]); v != "" {
			return v
		}
	}
	if n.Tag == "input" {
		switch n.attrs["type"] {
		case "button", "submit", "reset":
			if n.value != "" {
				return n.value
			}
		default:
			if v := strings.TrimSpace(n.attrs["placeholder"]); v != "" {
				return v
			}
		}
	}
	if text := strings.Join(strings.Fields(n.textContent()), " "); text != "" {
		return text
	}
	return strings.TrimSpace(n.attrs["title"])
}

// labelsFor returns the texts of the label elements associated with n: a
// label wrapping n, or a label whose for attribute is the id of n.
func labelsFor(root, n *Node) []string {
	if !n.isFormControl() {
		return nil
	}
	var labels []string
	for a := n.parent; a != nil; a = a.parent {
		if a.Tag == "label" {
			labels = append(labels, strings.TrimSpace(a.textContent()))
			break
		}
	}
	if id := n.id(); id != "" {
		walk(root, func(x *Node) {
			if x.Tag == "label" && x.attrs["for"] == id {
				labels = append(labels, strings.TrimSpace(x.textContent()))
			}
		})
	}
	return labels
}

// walk visits root and its descendants in document order, without entering
// iframe content documents.
func walk(root *Node, fn func(*Node)) {
	fn(root)
	for _, c := range root.children {
		walk(c, fn)
	}
}
