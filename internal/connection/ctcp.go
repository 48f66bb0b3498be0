package connection

import (
	"net"
	"strconv"
	"strings"
)

const ctcpDelim = "\x01"

// ctcpMessage is a CTCP request embedded in a PRIVMSG body.
type ctcpMessage struct {
	Command string
	Text    string
}

// parseCTCP extracts a CTCP request. The closing delimiter is optional,
// as some clients omit it.
func parseCTCP(body string) (ctcpMessage, bool) {
	if !strings.HasPrefix(body, ctcpDelim) {
		return ctcpMessage{}, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(body, ctcpDelim), ctcpDelim)
	cmd, text, _ := strings.Cut(inner, " ")
	if cmd == "" {
		return ctcpMessage{}, false
	}
	return ctcpMessage{Command: strings.ToUpper(cmd), Text: text}, true
}

// classifyPrivmsg decides the event kind of a PRIVMSG and the arguments it carries.
// CTCP requests are never chat: DCC CHAT offers become dcc-chat-request events with
// arguments ["DCC", "<offer>"], everything else (ACTION, VERSION, DCC SEND...) is other.
func classifyPrivmsg(target, body string) (EventKind, []string) {
	if ctcp, ok := parseCTCP(body); ok {
		if ctcp.Command == "DCC" {
			sub, _, _ := strings.Cut(ctcp.Text, " ")
			if strings.EqualFold(sub, "CHAT") {
				return KindDCCChatRequest, []string{ctcp.Command, ctcp.Text}
			}
		}
		return KindOther, []string{ctcp.Command, ctcp.Text}
	}

	if IsChannel(target) {
		return KindPublic, []string{body}
	}
	return KindPrivate, []string{body}
}

// DCCChatOffer is the peer address announced by a DCC CHAT request.
type DCCChatOffer struct {
	Address string
	Port    int
}

// ParseDCCChat validates the arguments of a dcc-chat-request event.
// The offer text must be "CHAT chat <address> <port>", where address is either
// a 32-bit integer or a literal IP. Anything else is reported as not ok.
func ParseDCCChat(args []string) (DCCChatOffer, bool) {
	if len(args) != 2 {
		return DCCChatOffer{}, false
	}
	fields := strings.Fields(args[1])
	if len(fields) != 4 {
		return DCCChatOffer{}, false
	}

	addr, ok := dccAddress(fields[2])
	if !ok {
		return DCCChatOffer{}, false
	}
	port, err := strconv.Atoi(fields[3])
	if err != nil || port < 1 || port > 65535 {
		return DCCChatOffer{}, false
	}

	return DCCChatOffer{Address: addr, Port: port}, true
}

// dccAddress converts the DCC integer notation to dotted quad.
func dccAddress(s string) (string, bool) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n)).String(), true
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.String(), true
	}
	return "", false
}
