package model

import "time"

// User represents an application user.  Every user can both list items for
// sale and buy from others, so there is no role column.  The user's cart is
// not embedded here: cart membership lives in the cart_items table and is a
// derived view over item reservations, reconciled on every read.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – given name.
//  LastName     – family name.
//  ContactNo    – phone number shown to counterparties after checkout.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	ContactNo    string    // users.contact_no
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
