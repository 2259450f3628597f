package infrastructure

import "strings"

// shellMeta are the characters that make an argument need quoting when a
// command line is shown to a human
const shellMeta = " \t\r\n'\"$`\\!*?[](){}|;<>&~#%"

// QuoteArg renders one argument so that pasting it into a POSIX shell
// reproduces it. exec.Command never needs this; it is for log output only.
func QuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, shellMeta) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// FormatCommand joins a binary and its arguments into a copy-pasteable line
func FormatCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, QuoteArg(binary))
	for _, arg := range args {
		parts = append(parts, QuoteArg(arg))
	}
	return strings.Join(parts, " ")
}
