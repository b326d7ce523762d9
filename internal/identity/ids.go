package identity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

func newPrincipalID(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String()
}
