package message

import "fmt"

// IntentKind tags the normalized turn representation.
type IntentKind int

const (
	IntentFreeText IntentKind = iota
	IntentMenuSelection
	IntentCommand
)

func (k IntentKind) String() string {
	switch k {
	case IntentMenuSelection:
		return "menu_selection"
	case IntentCommand:
		return "command"
	default:
		return "free_text"
	}
}

// Command names recognised by the flow engine.
const (
	CmdBack        = "back"
	CmdHome        = "home"
	CmdHelp        = "help"
	CmdFavorites   = "favorites"
	CmdCancel      = "cancel"
	CmdRestart     = "restart"
	CmdFavAdd      = "fav_add"
	CmdFavRemove   = "fav_remove"
	CmdSearchAgain = "search"
)

// Intent is FreeText(Text) | MenuSelection(NodeID) | Command(Name, Arg).
type Intent struct {
	Kind   IntentKind
	Text   string
	NodeID string
	Name   string
	Arg    string
}

func FreeText(text string) Intent {
	return Intent{Kind: IntentFreeText, Text: text}
}

func MenuSelection(nodeID string) Intent {
	return Intent{Kind: IntentMenuSelection, NodeID: nodeID}
}

func Command(name, arg string) Intent {
	return Intent{Kind: IntentCommand, Name: name, Arg: arg}
}

// IsEmpty reports an empty free-text intent, the result of malformed envelopes.
func (i Intent) IsEmpty() bool {
	return i.Kind == IntentFreeText && i.Text == ""
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentMenuSelection:
		return fmt.Sprintf("menu_selection(%s)", i.NodeID)
	case IntentCommand:
		if i.Arg != "" {
			return fmt.Sprintf("command(%s:%s)", i.Name, i.Arg)
		}
		return fmt.Sprintf("command(%s)", i.Name)
	default:
		return fmt.Sprintf("free_text(%d chars)", len(i.Text))
	}
}
