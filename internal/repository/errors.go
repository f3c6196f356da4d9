package repository

import (
	"errors"
	"fmt"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

// storeError maps gorm failures onto the domain error taxonomy.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}
