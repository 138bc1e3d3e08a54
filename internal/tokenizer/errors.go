package tokenizer

import "errors"

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrUnreadable           = errors.New("file not readable")
)
