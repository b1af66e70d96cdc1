package utils

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "securepassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if hash == "" {
		t.Error("Expected hash to be non-empty")
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	// bcrypt hash should start with $2a$ or $2b$
	if !strings.HasPrefix(hash, "$2") {
		t.Error("Expected bcrypt hash prefix")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	if err != ErrPasswordTooShort {
		t.Errorf("Expected ErrPasswordTooShort, got %v", err)
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	// bcrypt has a max length of 72 bytes
	longPassword := strings.Repeat("a", 73)

	_, err := HashPassword(longPassword)
	if err != ErrPasswordTooLong {
		t.Errorf("Expected ErrPasswordTooLong, got %v", err)
	}
}

func TestCheckPassword_Correct(t *testing.T) {
	password := "securepassword123"

	hash, _ := HashPassword(password)

	if !CheckPassword(password, hash) {
		t.Error("Expected password to match hash")
	}
}

func TestCheckPassword_Wrong(t *testing.T) {
	hash, _ := HashPassword("securepassword123")

	if CheckPassword("wrongpassword", hash) {
		t.Error("Expected wrong password to fail")
	}
}

func TestValidateRoomCode(t *testing.T) {
	valid := []string{"000000005", "123456789", "999999999"}
	for _, code := range valid {
		if !ValidateRoomCode(code) {
			t.Errorf("Expected code %q to be valid", code)
		}
	}

	invalid := []string{"", "12345678", "1234567890", "12345678a", "00000000 "}
	for _, code := range invalid {
		if ValidateRoomCode(code) {
			t.Errorf("Expected code %q to be invalid", code)
		}
	}
}
