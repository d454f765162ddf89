package message

import "strings"

var textCommands = map[string]string{
	"back":       CmdBack,
	"home":       CmdHome,
	"menu":       CmdHome,
	"main menu":  CmdHome,
	"start":      CmdHome,
	"help":       CmdHelp,
	"favorites":  CmdFavorites,
	"favourites": CmdFavorites,
	"cancel":     CmdCancel,
	"restart":    CmdRestart,
}

// Normalize maps an inbound envelope to an Intent. It never fails: unknown or
// malformed shapes degrade to an empty FreeText intent.
func Normalize(env *Envelope) Intent {
	if env == nil {
		return FreeText("")
	}

	switch env.Type {
	case TypeText:
		if env.Text == nil {
			return FreeText("")
		}
		return normalizeText(env.Text.Body)
	case TypeInteractive:
		ref := replyRef(env.Interactive)
		if ref == nil {
			return FreeText("")
		}
		return normalizeReplyID(ref.ID, ref.Title)
	default:
		return FreeText("")
	}
}

func replyRef(in *Interactive) *ReplyRef {
	if in == nil {
		return nil
	}
	switch in.Type {
	case InteractiveButtonReply:
		return in.ButtonReply
	case InteractiveListReply:
		return in.ListReply
	}
	// Some channels omit the discriminator.
	if in.ListReply != nil {
		return in.ListReply
	}
	return in.ButtonReply
}

func normalizeText(body string) Intent {
	text := strings.TrimSpace(body)
	key := strings.ToLower(strings.TrimPrefix(text, "/"))
	key = strings.Join(strings.Fields(key), " ")
	if name, ok := textCommands[key]; ok {
		return Command(name, "")
	}
	return FreeText(text)
}

func normalizeReplyID(id, title string) Intent {
	unique, data, err := DecodeReplyID(strings.TrimSpace(id))
	if err != nil {
		if title != "" {
			return normalizeText(title)
		}
		return FreeText("")
	}

	switch unique {
	case PrefixNav:
		if data == "" {
			return FreeText("")
		}
		return MenuSelection(data)
	case PrefixCommand:
		name, arg, _ := strings.Cut(data, ReplyIDSeparator)
		if name == "" {
			return FreeText("")
		}
		return Command(name, arg)
	case PrefixText:
		return FreeText(data)
	}

	if data != "" {
		// Unknown prefix: keep the whole id as the node reference.
		return MenuSelection(unique + ReplyIDSeparator + data)
	}
	return MenuSelection(unique)
}

// FromReplyID decodes a reply id the way Normalize does for interactive replies.
// Text-only channels use it to resolve a numbered choice back to its row id.
func FromReplyID(id string) Intent {
	return normalizeReplyID(id, "")
}
