package klap

import (
	"net/http"
	"net/textproto"
	"strings"
)

const sessionCookieName = "TP_SESSIONID"

// extractSessionCookie pulls TP_SESSIONID out of a handshake1 response by
// hand, the way the device actually sends it, rather than trusting
// net/http/cookiejar. Spec.md §4.3.1 notes the device also sets a
// TIMEOUT cookie that must be ignored, and §9 warns that Tapo's cookie
// headers are non-conformant enough that automatic jars misbehave.
func extractSessionCookie(resp *http.Response) string {
	for _, line := range resp.Header["Set-Cookie"] {
		for _, part := range strings.Split(textproto.TrimString(line), ";") {
			name, value, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			if textproto.TrimString(name) == sessionCookieName {
				return value
			}
		}
	}
	return ""
}
