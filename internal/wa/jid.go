// ABOUTME: Phone number sanitization and JID formatting helpers.
// ABOUTME: Individual chats address as <digits>@s.whatsapp.net.

package wa

import "strings"

// userServer is the JID domain for individual chats.
const userServer = "s.whatsapp.net"

// SanitizePhone strips everything but digits from a phone number.
// "+55 11 99999-8888" becomes "5511999998888".
func SanitizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatJID converts a phone number into an individual-chat JID. Inputs that
// already carry a domain are returned unchanged.
func FormatJID(phone string) string {
	if strings.Contains(phone, "@") {
		return phone
	}
	return SanitizePhone(phone) + "@" + userServer
}

// PhoneFromJID extracts the bare phone number from a JID, dropping the
// domain and any device suffix ("5511999998888:12@s.whatsapp.net").
func PhoneFromJID(jid string) string {
	user := jid
	if i := strings.IndexByte(user, '@'); i >= 0 {
		user = user[:i]
	}
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return user
}
