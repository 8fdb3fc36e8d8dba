package logger

import "strings"

// Tutor contact data and secrets never reach the log stream in clear.
var fieldMaskers = map[string]func(string) string{
	"phone":     maskPhone,
	"recipient": maskPhone,
	"email":     maskEmail,
	"password":  redact,
	"otp":       redact,
	"token":     redact,
}

func maskField(key string, value any) any {
	mask, ok := fieldMaskers[strings.ToLower(key)]
	if !ok {
		return value
	}
	switch v := value.(type) {
	case string:
		return mask(v)
	case *string:
		if v == nil {
			return nil
		}
		return mask(*v)
	}
	return redact("")
}

// maskPhone keeps the last four digits, which is what support staff match on.
func maskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return redact(email)
	}
	return local[:1] + "***@" + domain
}

func redact(string) string { return "[redacted]" }
