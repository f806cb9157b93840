package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func validRegistration() leave.Registration {
	return leave.Registration{
		Name:            "Priya Raman",
		Email:           "priya@acme.test",
		Password:        "Secret42",
		ConfirmPassword: "Secret42",
		Department:      "Finance",
		Role:            leave.RoleEmployee,
		JoiningDate:     date(2025, time.February, 3),
	}
}

func TestRegistration_Validate(t *testing.T) {
	assert.NoError(t, validRegistration().Validate())

	tests := []struct {
		name   string
		mutate func(*leave.Registration)
		want   error
	}{
		{"name", func(r *leave.Registration) { r.Name = " " }, leave.ErrMissingField},
		{"email", func(r *leave.Registration) { r.Email = "not-an-email" }, leave.ErrMissingField},
		{"department", func(r *leave.Registration) { r.Department = "" }, leave.ErrMissingField},
		{"role", func(r *leave.Registration) { r.Role = "Intern" }, leave.ErrInvalidRole},
		{"joining date", func(r *leave.Registration) { r.JoiningDate = time.Time{} }, leave.ErrMissingField},
		{"mismatch", func(r *leave.Registration) { r.ConfirmPassword = "Secret43" }, leave.ErrPasswordMismatch},
		{"short", func(r *leave.Registration) { r.Password, r.ConfirmPassword = "abc", "abc" }, leave.ErrPasswordTooShort},
		{"short in characters", func(r *leave.Registration) { r.Password, r.ConfirmPassword = "ééé", "ééé" }, leave.ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), tt.want)
		})
	}
}

func TestRegistration_PasswordLengthCountsCharacters(t *testing.T) {
	// GIVEN: six accented characters, twelve bytes
	r := validRegistration()
	r.Password, r.ConfirmPassword = "éééééé", "éééééé"

	// THEN: the six character minimum is met
	assert.NoError(t, r.Validate())
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		score    int
		label    string
	}{
		{"", 0, "Very Weak"},
		{"abcdef", 25, "Weak"},
		{"abcdefgh", 50, "Good"},
		{"abcdefg1", 75, "Strong"},
		{"Abcdefg1", 100, "Strong"},
		{"Ab!", 50, "Good"},
		{"ééé", 25, "Weak"},
	}
	for _, tt := range tests {
		score := leave.PasswordStrength(tt.password)
		assert.Equal(t, tt.score, score, tt.password)
		assert.Equal(t, tt.label, leave.StrengthLabel(score), tt.password)
	}
}
