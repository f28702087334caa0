package reference

import "strings"

// NormalizeCode turns free text into a storable code: lowercase, every byte
// outside [a-z0-9] becomes an underscore. "My Value!" -> "my_value_".
func NormalizeCode(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
