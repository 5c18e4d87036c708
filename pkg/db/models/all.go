package models

// All lists every persisted model. AutoMigrate in dev and tests walks it.
func All() []any {
	return []any{
		&User{},
		&Book{},
		&Loan{},
		&CartItem{},
		&ActivityLog{},
		&SystemConfig{},
		&OutboxEvent{},
	}
}
