package email

import (
	"context"
)

// Service sends mail on behalf of the clinic. The reminder scheduler and the
// auth flow are its only callers; transport concerns stay behind it.
type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}
