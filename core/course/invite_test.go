package course

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateInviteCode()
		if err != nil {
			t.Fatalf("generateInviteCode() error = %v", err)
		}
		if len(code) != inviteCodeLen {
			t.Errorf("generateInviteCode() = %q, want %d chars", code, inviteCodeLen)
		}
		for _, c := range code {
			if !strings.ContainsRune(inviteCodeAlphabet, c) {
				t.Errorf("generateInviteCode() = %q, contains %q", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("generateInviteCode() produced only %d distinct codes out of 100", len(seen))
	}
}

// inviteRepo reports taken codes through the pre-check or through CreateCourse.
type inviteRepo struct {
	Repository
	checked []string
	taken   map[string]bool
	racing  map[string]bool
}

func (r *inviteRepo) InviteCodeExists(_ context.Context, code string) (bool, error) {
	r.checked = append(r.checked, code)
	return r.taken[code], nil
}

func (r *inviteRepo) CreateCourse(_ context.Context, crs Course) (Course, error) {
	if r.racing[crs.InviteCode] {
		return Course{}, ErrInviteCodeExists
	}
	return crs, nil
}

func codeSeq(codes ...string) func() (string, error) {
	var i int
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func TestService_createWithUniqueInviteCode(t *testing.T) {
	tests := []struct {
		name     string
		codes    []string
		taken    []string
		racing   []string
		wantCode string
		wantErr  error
	}{
		{name: "first code free", codes: []string{"aaaaaaa"}, wantCode: "aaaaaaa"},
		{name: "taken code is skipped", codes: []string{"aaaaaaa", "bbbbbbb"}, taken: []string{"aaaaaaa"}, wantCode: "bbbbbbb"},
		{name: "lost race is retried", codes: []string{"aaaaaaa", "ccccccc"}, racing: []string{"aaaaaaa"}, wantCode: "ccccccc"},
		{name: "code space exhausted", codes: []string{"aaaaaaa"}, taken: []string{"aaaaaaa"}, wantErr: ErrInviteCodeSpace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &inviteRepo{taken: make(map[string]bool), racing: make(map[string]bool)}
			for _, c := range tt.taken {
				repo.taken[c] = true
			}
			for _, c := range tt.racing {
				repo.racing[c] = true
			}
			svc := &Service{repo: repo, genInviteCode: codeSeq(tt.codes...)}

			crs, err := svc.createWithUniqueInviteCode(context.Background(), Course{ID: "c1"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("createWithUniqueInviteCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if crs.InviteCode != tt.wantCode {
				t.Errorf("createWithUniqueInviteCode() code = %q, want %q", crs.InviteCode, tt.wantCode)
			}
			if tt.wantErr != nil && len(repo.checked) != maxInviteCodeAttempts {
				t.Errorf("createWithUniqueInviteCode() made %d attempts, want %d", len(repo.checked), maxInviteCodeAttempts)
			}
		})
	}
}
