package backend_test

import (
	"errors"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
)

func asBackendError(err error, target **backend.Error) bool {
	return errors.As(err, target)
}
