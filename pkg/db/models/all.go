package models

// All lists every persisted model. Tests use it to AutoMigrate sqlite databases.
func All() []any {
	return []any{
		&Message{},
		&RateLimitCounter{},
		&Tutor{},
		&Registration{},
		&AdminUser{},
		&OTPCode{},
		&InboundMessage{},
	}
}
