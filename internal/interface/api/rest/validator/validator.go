package validator

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"file-manager-api/internal/domain/file_info"
)

var (
	ErrInvalidID     = errors.New("id must be a positive integer")
	ErrInvalidStatus = errors.New("status must be one of TEMP, DONE, ALL")
)

func ParseID(s string) (file_info.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return file_info.ID(id), nil
}

// ParseOptionalID treats an empty value as "not given".
func ParseOptionalID(s string) (file_info.ID, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseID(s)
}

// ParseDim only checks the syntax; ranges are enforced by the thumbnail service.
func ParseDim(name, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

// ParseStatus accepts any case; empty means committed files only.
func ParseStatus(s string) (file_info.Status, error) {
	st, ok := file_info.ParseStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("duration must look like 90m or 24h")
	}
	return d, nil
}
