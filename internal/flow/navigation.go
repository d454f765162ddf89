package flow

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Proton-105/astro-bot/internal/collaborator"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
)

func (t *turn) idle(in message.Intent) error {
	switch in.Kind {
	case message.IntentCommand:
		return t.command(in.Name, in.Arg)
	case message.IntentMenuSelection:
		return t.selectNode(in.NodeID)
	}
	return t.freeText(in.Text)
}

// freeText resolves typed input: keyword search, a numbered row, a child title,
// then any node in the catalog.
func (t *turn) freeText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return t.unrecognized("empty")
	}
	if t.sess.SearchNode != "" {
		return t.search(text)
	}

	if n, err := strconv.Atoi(text); err == nil {
		rows := t.menuRows()
		if n >= 1 && n <= len(rows) {
			return t.idle(message.FromReplyID(rows[n-1].ID))
		}
		return t.unrecognized(text)
	}

	r := t.e.resolver
	if node, err := r.MatchChild(t.sess.CurrentMenu, text); err == nil {
		return t.selectNode(node.ID)
	}
	if node, err := r.ResolveByFreeText(text); err == nil {
		return t.selectNode(node.ID)
	}
	return t.unrecognized(text)
}

func (t *turn) search(text string) error {
	parent, _ := t.e.resolver.Catalog().Get(t.sess.SearchNode)
	results := t.e.resolver.SearchChildren(t.sess.SearchNode, text)

	switch len(results) {
	case 0:
		t.sayf("menu.search_none", "title", parent.Title, "input", text)
		return nil
	case 1:
		return t.selectNode(results[0].ID)
	}

	if len(results) > message.MaxListRows {
		results = results[:message.MaxListRows]
	}
	t.resp.Add(message.Payload{
		Type:     message.PayloadList,
		Header:   message.Truncate(parent.Title, message.MaxTitleRunes),
		Body:     t.tr.Tf("menu.search_results", "input", text),
		Button:   t.tr.T("menu.choose"),
		Sections: []message.Section{{Rows: nodeRows(results)}},
	})
	return nil
}

// selectNode enters id from the current context. A guard violation or an
// unknown node leaves the stack exactly as it was.
func (t *turn) selectNode(id string) error {
	stack, node, err := t.e.resolver.Enter(t.sess.NavStack, t.profile, id)

	var violation *menu.GuardViolation
	switch {
	case errors.As(err, &violation):
		t.report(apperrors.NewGuardViolation(violation.NodeID, violation.Reason, violation))
		return t.menu()
	case err != nil:
		return t.unrecognized(id)
	}

	switch node.Action.Kind {
	case menu.ActionSubmenu:
		t.sess.SetStack(stack)
		if t.e.resolver.NeedsSearch(node) {
			t.sess.BeginSearch()
		}
		return t.menu()
	case menu.ActionContent:
		return t.content(node.ID, node.Action.Target, nil, parentOf(stack))
	case menu.ActionFlow:
		t.sess.SetStack(parentOf(stack))
		return t.beginFlow(node.Action.Name())
	case menu.ActionCommand:
		t.sess.SetStack(parentOf(stack))
		return t.command(node.Action.Name(), node.Action.Arg())
	}
	return internal(menu.ErrUnknownNode)
}

// parentOf drops the entered leaf: only submenus stay on the navigation stack.
func parentOf(stack []string) []string {
	if len(stack) <= 1 {
		return stack
	}
	return stack[:len(stack)-1]
}

// content renders a reading and returns to context. A collaborator failure
// leaves the session untouched.
func (t *turn) content(nodeID, kind string, params map[string]string, context []string) error {
	rendered, err := t.e.content.Generate(t.ctx, kind, t.profile, params)
	if err != nil {
		if errors.Is(err, collaborator.ErrUnsupportedKind) {
			return apperrors.NewCollaboratorUnavailable("content", err)
		}
		return unavailable("content", err)
	}

	t.sess.SetStack(context)
	t.profile.PushRecent(nodeID, t.e.maxRecent)
	t.profile.MarkCompleted(nodeID)
	t.profileDirty = true

	body := rendered.Body
	if rendered.Title != "" {
		body = "*" + rendered.Title + "*\n\n" + body
	}
	t.resp.Text(body)
	t.resp.Add(t.whatNext(nodeID))
	return nil
}

// whatNext offers the way back, saving the reading as a favorite and the main menu.
func (t *turn) whatNext(nodeID string) message.Payload {
	root := t.e.resolver.Catalog().Root()
	buttons := make([]message.Button, 0, message.MaxButtons)

	if top := t.sess.CurrentMenu; top != "" && top != root {
		if n, ok := t.e.resolver.Catalog().Get(top); ok {
			buttons = append(buttons, message.Button{
				ID:    message.NavID(n.ID),
				Title: message.Truncate(n.Title, message.MaxButtonRunes),
			})
		}
	}
	if _, ok := t.e.resolver.Catalog().Get(nodeID); ok && !t.profile.IsFavorite(nodeID) {
		buttons = append(buttons, message.Button{
			ID:    message.CommandID(message.CmdFavAdd, nodeID),
			Title: message.Truncate(t.tr.T("menu.save_favorite"), message.MaxButtonRunes),
		})
	}
	buttons = append(buttons, message.Button{
		ID:    message.CommandID(message.CmdHome, ""),
		Title: message.Truncate(t.tr.T("menu.home"), message.MaxButtonRunes),
	})

	return message.Payload{
		Type:    message.PayloadButton,
		Body:    t.tr.T("menu.what_next"),
		Buttons: buttons,
	}
}
