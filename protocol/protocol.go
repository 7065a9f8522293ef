// Package protocol implements the stateless textual grammar of the
// chat wire protocol: one command or response per line, no state.
//
// The command set is closed.  Which commands a line may match depends
// on the session phase: before login only registration and quit are
// recognised; after login the full chat command set applies.  Name
// uniqueness, timeouts, and capacity are not grammar concerns — they
// belong to the registry, executor, and listener.
package protocol

import (
	"fmt"
	"regexp"
	"strings"

	"gochat/internal/errors"
)

// Phase selects which subset of the grammar applies to a line.
type Phase int

const (
	// PhaseHandshake is the pre-login period: only `user <name>` and
	// `bye` are accepted.
	PhaseHandshake Phase = iota
	// PhaseActive is the logged-in period with the full command set.
	PhaseActive
)

func (p Phase) String() string {
	if p == PhaseHandshake {
		return "handshake"
	}
	return "active"
}

// Tag identifies a command from the closed set.
type Tag int

const (
	CmdInvalid Tag = iota
	CmdRegister
	CmdSendAll
	CmdSendTo
	CmdList
	CmdQuit
	CmdHelp
)

// Command is one entry of the closed command table: a tag, the usage
// line shown by `help`, and the grammar rule that recognises it.
type Command struct {
	Tag   Tag
	Usage string
	re    *regexp.Regexp
}

// NameCharset is the username grammar shared by `user` and `send_to`.
const NameCharset = `[a-z0-9_-]{3,15}`

const (
	sendAllWord = "send_all"
	sendToWord  = "send_to"
)

var commands = []Command{
	{CmdRegister, "Register: user <username>",
		regexp.MustCompile(`^user (` + NameCharset + `)( .*)?$`)},
	{CmdSendAll, "Message all users: send_all <single line message>",
		regexp.MustCompile(`^` + sendAllWord + ` .*$`)},
	{CmdSendTo, "Message specific user: send_to <username> <single line message>",
		regexp.MustCompile(`^` + sendToWord + ` (` + NameCharset + `) .*$`)},
	{CmdList, "List currently connected clients: list (no arguments needed)",
		regexp.MustCompile(`^list$`)},
	{CmdQuit, "Quit: bye (no arguments needed)",
		regexp.MustCompile(`^bye$`)},
	{CmdHelp, "List available commands: help (no arguments needed)",
		regexp.MustCompile(`^help$`)},
}

var phaseTags = map[Phase][]Tag{
	PhaseHandshake: {CmdRegister, CmdQuit},
	PhaseActive:    {CmdSendAll, CmdSendTo, CmdList, CmdQuit, CmdHelp},
}

func lookup(tag Tag) Command {
	for _, c := range commands {
		if c.Tag == tag {
			return c
		}
	}
	return Command{Tag: CmdInvalid}
}

// Classify matches line against the grammar rules allowed in phase.
// A line no rule matches yields a ProtocolError whose hint names the
// expected syntax for the phase.
func Classify(line string, phase Phase) (Tag, error) {
	for _, tag := range phaseTags[phase] {
		if lookup(tag).re.MatchString(line) {
			return tag, nil
		}
	}
	return CmdInvalid, errors.Invalid(line, Hint(phase))
}

// Hint returns the expected-syntax message for lines that fail the
// grammar in the given phase.
func Hint(phase Phase) string {
	if phase == PhaseHandshake {
		return "type 'user <username>' to register in the chat, or 'bye' to close the program"
	}
	return "type 'help' for the list of available commands"
}

// RegisterName extracts the name token of a `user` line.
func RegisterName(line string) (string, error) {
	m := lookup(CmdRegister).re.FindStringSubmatch(line)
	if m == nil {
		return "", errors.Invalid(line, "expected: user <username>")
	}
	return m[1], nil
}

// Recipient extracts the name token of a `send_to` line.
func Recipient(line string) (string, error) {
	m := lookup(CmdSendTo).re.FindStringSubmatch(line)
	if m == nil {
		return "", errors.Invalid(line, "expected: send_to <username> <message>")
	}
	return m[1], nil
}

// Body extracts the message text of a `send_all` or `send_to` line:
// the remainder after the keyword (and, for send_to, the recipient),
// with the single separating space removed.
func Body(tag Tag, line string) (string, error) {
	switch tag {
	case CmdSendAll:
		return strings.TrimPrefix(line, sendAllWord+" "), nil
	case CmdSendTo:
		name, err := Recipient(line)
		if err != nil {
			return "", err
		}
		return strings.TrimPrefix(line, sendToWord+" "+name+" "), nil
	default:
		return "", fmt.Errorf("command %d carries no message body", tag)
	}
}

// Help returns the static usage listing, one command per line.
func Help() string {
	var b strings.Builder
	for i, c := range commands {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Usage)
	}
	return b.String()
}

// ── Server → client responses ────────────────────────────────────────
//
// The formats are fixed wire text; the client classifies replies with
// the matching regexes below, so format and regex must stay in sync.

const (
	// RespInvalid is sent for any line that fails the grammar.
	RespInvalid = "404 Invalid command!"
	// RespDisconnect is the best-effort teardown notice.
	RespDisconnect = "200 Disconnected from the server."
	// RespRoomFull is written to the raw connection when admission
	// rejects it; no session ever exists for that connection.
	RespRoomFull = "Chat room full - try again later. :)"
)

// RegisterOK formats the registration success reply.
func RegisterOK(name string) string {
	return fmt.Sprintf("200 ok %s successfully registerred", name)
}

// RegisterTaken formats the name-conflict reply.
func RegisterTaken(name string) string {
	return fmt.Sprintf("100 err %s already taken!", name)
}

// SendToOK formats the direct-send confirmation to the sender.
func SendToOK(recipient string) string {
	return fmt.Sprintf("200 ok message to %s sent successfully.", recipient)
}

// SendToMissing formats the unknown-recipient error to the sender.
func SendToMissing(recipient string) string {
	return fmt.Sprintf("100 err %s does not exists!", recipient)
}

// FormatBroadcast produces the wire text delivered to every recipient
// of a broadcast.
func FormatBroadcast(sender, body string) string {
	return "300 msg_from" + sender + body
}

// FormatDirect produces the wire text delivered to the recipient of a
// direct message.  Same shape as a broadcast; the sender's confirmation
// line is what distinguishes the two on the sending side.
func FormatDirect(sender, body string) string {
	return FormatBroadcast(sender, body)
}

// ListReply formats the single-line listing of registered users.
func ListReply(names []string) string {
	return "200 ok connected users: " + strings.Join(names, " ")
}

// ── Client-side reply classification ─────────────────────────────────

var (
	registerOKRe   = regexp.MustCompile(`^200 ok ` + NameCharset + ` successfully registerred$`)
	registerErrRe  = regexp.MustCompile(`^100 err ` + NameCharset + ` already taken!$`)
	invalidRe      = regexp.MustCompile(`^` + regexp.QuoteMeta(RespInvalid) + `$`)
	disconnectRe   = regexp.MustCompile(`^` + regexp.QuoteMeta(RespDisconnect) + `$`)
	messageFromRe  = regexp.MustCompile(`^300 msg_from.*$`)
	successReplyRe = regexp.MustCompile(`^200 ok .*$`)
	errorReplyRe   = regexp.MustCompile(`^100 err .*$`)
)

// IsRegisterOK reports whether line is a registration success reply.
func IsRegisterOK(line string) bool { return registerOKRe.MatchString(line) }

// IsRegisterErr reports whether line is a name-conflict reply.
func IsRegisterErr(line string) bool { return registerErrRe.MatchString(line) }

// IsInvalid reports whether line is the invalid-command notice.
func IsInvalid(line string) bool { return invalidRe.MatchString(line) }

// IsDisconnect reports whether line is the server's teardown notice.
func IsDisconnect(line string) bool { return disconnectRe.MatchString(line) }

// IsChatMessage reports whether line is a relayed chat message.
func IsChatMessage(line string) bool { return messageFromRe.MatchString(line) }

// IsSuccess reports whether line is any 200-class reply.
func IsSuccess(line string) bool { return successReplyRe.MatchString(line) }

// IsError reports whether line is any 100-class reply.
func IsError(line string) bool { return errorReplyRe.MatchString(line) }
