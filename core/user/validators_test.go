package user

import "testing"

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		attrs   []string
		wantTag string
	}{
		{name: "empty is left to required", pwd: ""},
		{name: "too short", pwd: "aB3$x", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Xk9#m Q2$vL", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "similar to name", pwd: "JaneDoe123", attrs: []string{"Jane Doe"}, wantTag: pwdAttrSimTag},
		{name: "similar to email", pwd: "jane@test.io", attrs: []string{"Jane Doe", "jane@test.io"}, wantTag: pwdAttrSimTag},
		{name: "valid", pwd: "Xk9#mQ2$vL", attrs: []string{"Jane Doe", "jane@test.io"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, tt.attrs...); got != tt.wantTag {
				t.Errorf("checkPassword() = %q, want %q", got, tt.wantTag)
			}
		})
	}
}

func TestValidateNewPassword(t *testing.T) {
	if err := validateNewPassword(""); err == nil {
		t.Error("validateNewPassword() error = nil, want an error for an empty password")
	}
	if err := validateNewPassword("Xk9#mQ2$vL", "Jane Doe"); err != nil {
		t.Errorf("validateNewPassword() error = %v, want nil", err)
	}
}
