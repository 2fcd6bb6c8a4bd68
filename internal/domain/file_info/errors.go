package file_info

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("file not found")
	ErrStorageWrite = errors.New("storage write failure")
	ErrStorageRead  = errors.New("storage read failure")
	ErrDecode       = errors.New("image decode failure")
)
