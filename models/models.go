package models

// All lists every persisted model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&AuthIdentity{},
		&UserRole{},
		&UserProfile{},
		&Application{},
		&Customer{},
		&Subscription{},
		&Invoice{},
		&InvoiceItem{},
		&PaymentMethod{},
		&PaymentTransaction{},
		&Refund{},
		&AccessLog{},
		&SequenceCounter{},
	}
}
