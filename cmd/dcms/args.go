package main

import "strings"

// groups are commands whose first positional argument names a subcommand.
var groups = map[string]bool{"admin": true, "password": true}

// resolveCommandName names the invoked command for the root span, e.g.
// "admin.set-status". Flags and positional values are never included.
func resolveCommandName(args []string) string {
	words := make([]string, 0, 2)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" || strings.HasPrefix(arg, "-") {
			if len(words) > 0 {
				break
			}
			continue
		}
		words = append(words, arg)
		if len(words) == 2 || !groups[words[0]] {
			break
		}
	}
	if len(words) == 0 {
		return "root"
	}
	return strings.Join(words, ".")
}

// redactArgs masks the value of every credential-like flag, in both the
// "--flag value" and "--flag=value" forms.
func redactArgs(args []string) []string {
	redacted := make([]string, 0, len(args))
	maskNext := false

	for _, arg := range args {
		if maskNext {
			redacted = append(redacted, "<redacted>")
			maskNext = false
			continue
		}

		trimmed := strings.TrimSpace(arg)
		if name, _, ok := strings.Cut(trimmed, "="); ok && isSensitiveToken(strings.ToLower(name)) {
			redacted = append(redacted, name+"=<redacted>")
			continue
		}

		if strings.HasPrefix(trimmed, "-") && isSensitiveToken(strings.ToLower(trimmed)) {
			maskNext = true
		}
		redacted = append(redacted, trimmed)
	}

	return redacted
}

func isSensitiveToken(value string) bool {
	for _, candidate := range []string{"token", "password", "passwd", "secret", "code", "otp", "auth", "bearer"} {
		if strings.Contains(value, candidate) {
			return true
		}
	}
	return false
}
