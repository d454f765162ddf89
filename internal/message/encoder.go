package message

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ReplyIDSeparator  = ":"
	ReplyIDLimitBytes = 64
)

// Reply id prefixes understood by Normalize.
const (
	PrefixNav     = "nav"
	PrefixCommand = "cmd"
	PrefixText    = "txt"
)

// EncodeReplyID joins a prefix and payload into an interactive reply id.
func EncodeReplyID(unique, data string) (string, error) {
	if data == "" {
		if len(unique) > ReplyIDLimitBytes {
			return "", fmt.Errorf("reply id exceeds %d byte limit: got %d", ReplyIDLimitBytes, len(unique))
		}
		return unique, nil
	}

	payload := unique + ReplyIDSeparator + data
	if len(payload) > ReplyIDLimitBytes {
		return "", fmt.Errorf("reply id exceeds %d byte limit: got %d", ReplyIDLimitBytes, len(payload))
	}

	return payload, nil
}

// MustReplyID is EncodeReplyID for ids built from catalog constants.
func MustReplyID(unique, data string) string {
	id, err := EncodeReplyID(unique, data)
	if err != nil {
		panic(err)
	}
	return id
}

// DecodeReplyID splits a reply id at the first separator.
func DecodeReplyID(replyID string) (unique, data string, err error) {
	if replyID == "" {
		return "", "", errors.New("reply id is empty")
	}

	idx := strings.Index(replyID, ReplyIDSeparator)
	if idx == -1 {
		return replyID, "", nil
	}

	return replyID[:idx], replyID[idx+len(ReplyIDSeparator):], nil
}

// NavID is the reply id selecting a menu node.
func NavID(nodeID string) string {
	return MustReplyID(PrefixNav, nodeID)
}

// CommandID is the reply id invoking a command, with an optional argument.
func CommandID(name, arg string) string {
	if arg == "" {
		return MustReplyID(PrefixCommand, name)
	}
	return MustReplyID(PrefixCommand, name+ReplyIDSeparator+arg)
}

// TextID is the reply id that behaves like typed text (e.g. Yes/No buttons).
func TextID(value string) string {
	return MustReplyID(PrefixText, value)
}
