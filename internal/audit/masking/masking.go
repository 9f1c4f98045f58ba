package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a credential while keeping its prefix and a short
// suffix so operators can still correlate audit entries with a key.
// "sk_live_key_ABC123_deadbeef" becomes "sk_live_key_ABC123_****beef".
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
