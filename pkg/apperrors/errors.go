package apperrors

import "errors"

var (
	ErrInvalidMode        = errors.New("invalid graph mode")
	ErrUnknownDatasource  = errors.New("unknown datasource type")
	ErrRowLimitOutOfRange = errors.New("row limit out of range")
)
