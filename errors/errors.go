package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidMessage     = fmt.Errorf("invalid message payload")
	ErrStorageFailure     = fmt.Errorf("message could not be persisted")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)
