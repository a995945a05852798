package workflow

import (
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLength = 255

var errIdempotentReplay = errors.New("idempotent replay")

func validateIdempotencyKey(key string) error {
	if len(key) > maxIdempotencyKeyLength {
		return NewValidationError("Idempotency-Key", nil, "must be at most 255 characters")
	}
	return nil
}

// findIdempotentResult returns the reference id recorded for key, or 0 when the key is unused.
func findIdempotentResult(tx *gorm.DB, handlerName, key string) (int, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, nil
	}
	var existing models.IdempotencyKey
	err := tx.Where("handler_name = ? AND idempotency_key = ?", handlerName, key).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return existing.ReferenceId, nil
}

// recordIdempotencyKey must run inside the transaction that created referenceId.
// A concurrent request with the same key blocks on the unique index and then fails
// with errIdempotentReplay once the winner commits.
func recordIdempotencyKey(tx *gorm.DB, handlerName, key string, referenceId int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	row := models.IdempotencyKey{
		HandlerName:    handlerName,
		IdempotencyKey: key,
		ReferenceId:    referenceId,
		Status:         models.IdempotencyStatusSucceeded,
	}
	if err := tx.Create(&row).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return errIdempotentReplay
		}
		return err
	}
	return nil
}
