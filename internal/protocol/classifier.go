package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/alarm-bridge/internal/logger"
)

// ErrMalformedJSON marks a brace-shaped line that did not parse.
var ErrMalformedJSON = errors.New("malformed json")

//nolint:gochecknoglobals // Fixed glyph and keyword sets of the firmware.
var (
	// informationalGlyphs mark firmware progress messages that carry no command.
	informationalGlyphs = []string{"✅", "🚨", "🔘", "📤", "🤝"}
	// fallbackKeywords trigger an alarm when nothing more specific matched.
	fallbackKeywords = []string{"BUTTON PRESSED", "EMERGENCY BUTTON", "ALARM", "TRIGGER"}
)

// input is what a rule inspects.
type input struct {
	ctx        context.Context //nolint:containedctx // Only lives for one Classify call.
	line       string
	upper      string
	collecting bool
}

// rule maps a line to a command when it applies.
type rule struct {
	name  string
	apply func(in *input) (Command, bool)
}

// rules are evaluated in order; the first match wins.
//
//nolint:gochecknoglobals // Static decision table.
var rules = []rule{
	{"handshake-begin", func(in *input) (Command, bool) {
		return Command{Kind: KindHandshakeBegin, Text: in.line}, in.line == MarkerHandshakeBegin
	}},
	{"handshake-end", func(in *input) (Command, bool) {
		return Command{Kind: KindHandshakeEnd, Text: in.line}, in.line == MarkerHandshakeEnd
	}},
	{"handshake-field", matchHandshakeField},
	{"emergency-literal", func(in *input) (Command, bool) {
		ok := in.line == LiteralAlarmStart || strings.Contains(in.upper, "EMERGENCY")

		return Command{Kind: KindEmergencyStart, Text: in.line, Source: SourceButtonPress}, ok
	}},
	{"emergency-json", matchJSONPlayAlarm},
	{"stop", func(in *input) (Command, bool) {
		ok := in.line == LiteralAlarmStop ||
			strings.Contains(in.upper, "CANCEL") ||
			strings.Contains(in.upper, "STOP")

		return Command{Kind: KindEmergencyStop, Text: in.line}, ok
	}},
	{"custom-command", func(in *input) (Command, bool) {
		ok := strings.HasPrefix(in.line, PrefixCommand) || strings.HasPrefix(in.line, PrefixPlaySound)

		return Command{Kind: KindCustomCommand, Text: in.line}, ok
	}},
	{"status", func(in *input) (Command, bool) {
		return Command{Kind: KindStatusUpdate, Text: in.line}, strings.HasPrefix(in.line, PrefixStatus)
	}},
	{"informational", func(in *input) (Command, bool) {
		return Command{Kind: KindInformational, Text: in.line}, containsAny(in.line, informationalGlyphs)
	}},
	{"keyword-fallback", func(in *input) (Command, bool) {
		cmd := Command{
			Kind:    KindEmergencyStart,
			Text:    in.line,
			Source:  SourceAutoDetected,
			Details: map[string]any{"message": in.line},
		}

		return cmd, containsAny(in.upper, fallbackKeywords)
	}},
}

// Classify maps one decoded line to exactly one Command. collecting tells
// whether a handshake block is open, which turns "KEY: value" lines into fields.
func Classify(ctx context.Context, line string, collecting bool) Command {
	in := &input{
		ctx:        ctx,
		line:       line,
		upper:      strings.ToUpper(line),
		collecting: collecting,
	}

	for _, r := range rules {
		if cmd, ok := r.apply(in); ok {
			logger.DebugKV(ctx, "Line classified", "rule", r.name, "kind", cmd.Kind.String())

			return cmd
		}
	}

	return Command{Kind: KindUnrecognized, Text: line}
}

func matchHandshakeField(in *input) (Command, bool) {
	if !in.collecting {
		return Command{}, false
	}

	key, value, found := strings.Cut(in.line, ":")
	if !found {
		return Command{}, false
	}

	return Command{
		Kind:  KindHandshakeField,
		Text:  in.line,
		Key:   strings.TrimSpace(key),
		Value: strings.TrimSpace(value),
	}, true
}

func matchJSONPlayAlarm(in *input) (Command, bool) {
	if !strings.HasPrefix(in.line, "{") || !strings.HasSuffix(in.line, "}") {
		return Command{}, false
	}

	details, err := parseObject(in.line)
	if err != nil {
		logger.DebugKV(in.ctx, "Brace-shaped line is not JSON, falling through", "line", in.line, "error", err)

		return Command{}, false
	}

	if command, _ := details["command"].(string); command != JSONPlayAlarm {
		return Command{}, false
	}

	return Command{
		Kind:    KindEmergencyStart,
		Text:    in.line,
		Source:  SourceJSONCommand,
		Details: details,
	}, true
}

func parseObject(line string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	return obj, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}

	return false
}
