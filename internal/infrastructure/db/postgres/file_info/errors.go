package file_info

import "errors"

var ErrStoredNameExists = errors.New("stored name already exists")
