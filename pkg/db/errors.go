package db

import pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"

// IsUniqueViolation reports a unique-index failure on either dialect. An
// empty constraintName matches any unique index.
func IsUniqueViolation(err error, constraintName string) bool {
	return pkgerrors.IsUniqueViolation(err, constraintName)
}

// IsTransient reports failures that a rerun of the same transaction can clear.
func IsTransient(err error) bool {
	return pkgerrors.IsTransient(err)
}
