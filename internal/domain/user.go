package domain

import "time"

type User struct {
	UserID          string     `json:"id" dynamodbav:"user_id"`
	Username        string     `json:"username" dynamodbav:"username"`
	Phone           string     `json:"phone" dynamodbav:"phone"`
	PasswordHash    string     `json:"-" dynamodbav:"password_hash"`
	IsActive        bool       `json:"is_active" dynamodbav:"is_active"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty" dynamodbav:"phone_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}
