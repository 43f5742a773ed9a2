package services

import "errors"

var (
	ErrParsingFailed     = errors.New("failed to parse import file")
	ErrUnsupportedFormat = errors.New("unsupported import/export format")
)
