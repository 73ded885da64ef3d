package store

import (
	"fmt"

	"sniper-core/internal/models"
)

func wrapMemoryFailure() error {
	return fmt.Errorf("%w: simulated outage", models.ErrStoreUnavailable)
}
