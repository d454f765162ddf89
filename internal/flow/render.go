package flow

import (
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
)

const maxRowDescriptionRunes = 72

// menu appends the current menu: a list of children, or the keyword search
// prompt when the node has too many children to list.
func (t *turn) menu() error {
	cat := t.e.resolver.Catalog()
	node, ok := cat.Get(t.sess.CurrentMenu)
	if !ok {
		node, _ = cat.Get(cat.Root())
	}

	if t.sess.SearchNode != "" && t.sess.SearchNode == node.ID {
		example := ""
		if children := cat.Children(node.ID); len(children) > 0 {
			example = children[0].Title
		}
		t.sayf("menu.search_prompt", "title", node.Title, "example", example)
		return nil
	}

	body := t.e.resolver.Breadcrumbs(t.stack())
	if node.Description != "" {
		body += "\n" + node.Description
	}

	t.resp.Add(message.Payload{
		Type:     message.PayloadList,
		Header:   node.Title,
		Body:     body,
		Footer:   t.tr.T("menu.footer"),
		Button:   t.tr.T("menu.choose"),
		Sections: t.menuSections(),
	})
	return nil
}

// stack returns the navigation stack, the root when it is empty.
func (t *turn) stack() []string {
	if len(t.sess.NavStack) == 0 {
		return t.e.resolver.Home()
	}
	return t.sess.NavStack
}

// menuSections lists the current node's children, plus Back and Main Menu below
// the root while they fit in one list.
func (t *turn) menuSections() []message.Section {
	children := t.e.resolver.Catalog().Children(t.sess.CurrentMenu)
	if len(children) == 0 && t.sess.CurrentMenu == "" {
		children = t.e.resolver.Catalog().Children(t.e.resolver.Catalog().Root())
	}
	if len(children) > message.MaxListRows {
		children = children[:message.MaxListRows]
	}

	sections := []message.Section{{Rows: nodeRows(children)}}
	if len(t.stack()) > 1 && len(children)+2 <= message.MaxListRows {
		sections = append(sections, message.Section{
			Title: t.tr.T("menu.navigate"),
			Rows: []message.Row{
				{ID: message.CommandID(message.CmdBack, ""), Title: t.tr.T("menu.back")},
				{ID: message.CommandID(message.CmdHome, ""), Title: t.tr.T("menu.home")},
			},
		})
	}
	return sections
}

// menuRows flattens menuSections in the order text-only channels number them.
func (t *turn) menuRows() []message.Row {
	if t.sess.SearchNode != "" {
		return nil
	}
	var rows []message.Row
	for _, s := range t.menuSections() {
		rows = append(rows, s.Rows...)
	}
	return rows
}

func nodeRows(nodes []*menu.Node) []message.Row {
	rows := make([]message.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, message.Row{
			ID:          message.NavID(n.ID),
			Title:       message.Truncate(n.Title, message.MaxTitleRunes),
			Description: message.Truncate(n.Description, maxRowDescriptionRunes),
		})
	}
	return rows
}
