package autostart

import "strings"

// CommandLine builds the command registered for autostart. Arguments holding
// spaces are quoted.
func CommandLine(executablePath string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(executablePath))
	for _, arg := range args {
		if strings.ContainsAny(arg, " \t") {
			arg = quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

// IsEnabled reports whether a non-empty autostart command is registered for
// appName.
func IsEnabled(appName string) (bool, error) {
	command, err := registered(appName)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(command) != "", nil
}
