package ffmpeg

import "strings"

// ParseLogLevel splits a line printed with -loglevel level+info into its
// level and message. Lines look like "[info] message" or
// "[component @ 0x...] [level] message"; the component prefix is kept.
func ParseLogLevel(line string) (level, msg string) {
	first, rest, ok := cutBracket(line)
	if !ok {
		return "info", line
	}
	if isLogLevel(first) {
		return first, rest
	}

	second, tail, ok := cutBracket(rest)
	if ok && isLogLevel(second) {
		return second, "[" + first + "] " + tail
	}
	return "info", line
}

// cutBracket splits "[x] rest" into x and rest.
func cutBracket(s string) (inner, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	inner, rest, ok = strings.Cut(s[1:], "] ")
	if !ok {
		return "", s, false
	}
	return inner, rest, true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
