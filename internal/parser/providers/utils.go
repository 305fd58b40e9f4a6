package providers

import (
	"regexp"
	"strconv"
	"strings"
)

var ipPattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// isValidIP checks IP address validity
func isValidIP(ip string) bool {
	if !ipPattern.MatchString(ip) {
		return false
	}

	parts := strings.Split(ip, ".")
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 255 {
			return false
		}
	}
	return true
}

// isValidPort checks port validity
func isValidPort(portStr string) bool {
	port, err := strconv.Atoi(portStr)
	return err == nil && port > 0 && port <= 65535
}

// parseHostPort reads one "host:port" directory entry. A leading scheme is dropped.
func parseHostPort(line string) (string, int, bool) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "://"); i >= 0 {
		line = line[i+3:]
	}

	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return "", 0, false
	}

	host := strings.TrimSpace(parts[0])
	portStr := strings.TrimSpace(parts[1])
	if !isValidIP(host) || !isValidPort(portStr) {
		return "", 0, false
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}
