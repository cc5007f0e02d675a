package course

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	// no 0/o, 1/i/l: codes are typed by hand
	inviteCodeAlphabet    = "abcdefghjkmnpqrstuvwxyz23456789"
	inviteCodeLen         = 7
	maxInviteCodeAttempts = 10
)

func generateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	var sb strings.Builder
	sb.Grow(inviteCodeLen)
	for i := 0; i < inviteCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random")
		}
		sb.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// createWithUniqueInviteCode retries on collisions, detected either by the pre-check or by the
// storage uniqueness constraint when a concurrent creation wins the race.
func (svc *Service) createWithUniqueInviteCode(ctx context.Context, crs Course) (Course, error) {
	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		code, err := svc.genInviteCode()
		if err != nil {
			return Course{}, err
		}
		exists, err := svc.repo.InviteCodeExists(ctx, code)
		if err != nil {
			return Course{}, errors.Wrap(err, "checking invite code")
		}
		if exists {
			continue
		}

		crs.InviteCode = code
		created, err := svc.repo.CreateCourse(ctx, crs)
		if errors.Is(err, ErrInviteCodeExists) {
			continue
		}
		return created, err
	}
	return Course{}, ErrInviteCodeSpace
}
