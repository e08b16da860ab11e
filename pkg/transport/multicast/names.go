// ABOUTME: DNS name helpers for service instances
// ABOUTME: Splits instance labels off full names and undoes presentation escaping
package multicast

import (
	"strconv"
	"strings"
)

// instanceName returns the instance label of a full service instance name,
// e.g. "collabnetsvn\ (2)._csvn._tcp.local." gives "collabnetsvn (2)".
func instanceName(full, service, domain string) (string, bool) {
	suffix := "." + strings.Trim(service, ".") + "." + strings.Trim(domain, ".") + "."
	if !strings.HasSuffix(full, ".") {
		full += "."
	}
	if !strings.HasSuffix(strings.ToLower(full), strings.ToLower(suffix)) {
		return "", false
	}
	label := full[:len(full)-len(suffix)]
	if label == "" {
		return "", false
	}
	return unescape(label), true
}

// unescape reverses \X and \DDD escapes of the DNS presentation format
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		if i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			if n, err := strconv.Atoi(s[i+1 : i+4]); err == nil && n < 256 {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i+1])
		i++
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func trimDot(s string) string {
	return strings.TrimSuffix(s, ".")
}
