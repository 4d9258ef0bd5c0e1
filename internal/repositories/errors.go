package repositories

import "errors"

var (
	ErrMaxAttemptsExceeded  = errors.New("maximum attempts exceeded")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrUniqueViolation      = errors.New("unique constraint violation")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrAssessmentNotFound   = errors.New("assessment not found")
)

func IsMaxAttemptsExceeded(err error) bool {
	return errors.Is(err, ErrMaxAttemptsExceeded)
}

func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}
