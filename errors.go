package raadmin

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidSort  = errors.New("invalid sort")
	ErrInvalidRange = errors.New("invalid range")
	ErrEmptyPayload = errors.New("empty payload")
	ErrInvalidValue = errors.New("invalid value")
	ErrNoPrimaryKey = errors.New("entity has no primary key")
)

// IsClientError reports whether err was caused by the request shape rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrInvalidSort) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrInvalidValue)
}

// IsConflict reports constraint violations translated by gorm.
func IsConflict(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
