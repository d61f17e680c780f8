package ferrors

import (
	"errors"
	"os"
)

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func isPermission(err error) bool {
	return errors.Is(err, os.ErrPermission)
}
