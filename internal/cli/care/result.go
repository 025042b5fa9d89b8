package care

import (
	"errors"
	"fmt"
	"strings"

	apperr "github.com/julianstephens/carelog/internal/errors"
)

// settle turns a queued mutation into a success message. Conflicts get an
// override hint.
func settle(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrQueued) {
		msg := strings.TrimSuffix(err.Error(), ": "+apperr.ErrQueued.Error())
		fmt.Printf("⏸ Offline: %s. Run 'carelog sync' when back online.\n", msg)
		return nil
	}
	if c, ok := apperr.AsConflict(err); ok {
		return fmt.Errorf("%s (use --override to confirm anyway)", c.Error())
	}
	return err
}
