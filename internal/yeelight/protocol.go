package yeelight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	lineEnding = "\r\n"
	// DefaultPort is the bulb's LAN control port.
	DefaultPort = 55443
)

// request is one JSON command line sent to a bulb.
type request struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func (r request) encode() ([]byte, error) {
	if r.Params == nil {
		r.Params = []any{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s", r.Method)
	}
	return append(b, lineEnding...), nil
}

// ReplyError is an error reported by the bulb for a command.
type ReplyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

type reply struct {
	ID     int         `json:"id"`
	Result []string    `json:"result"`
	Error  *ReplyError `json:"error"`
}

// parseReply decodes a response line. Notifications and blank lines are reported with
// ok=false.
func parseReply(line string) (reply, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, `{"id":`) {
		return reply{}, false, nil
	}
	var r reply
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return reply{}, false, eris.Wrapf(err, "failed to decode reply %q", line)
	}
	return r, true, nil
}

// flowExpression builds a single-step start_cf expression that fades to rgb at the given
// brightness. The bulb rejects durations under 50ms.
func flowExpression(durationMs int, rgb uint, brightness int) string {
	return fmt.Sprintf("%d, 1, %d, %d", max(durationMs, 50), rgb, brightness)
}
