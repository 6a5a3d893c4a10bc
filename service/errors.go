package service

import "errors"

var (
	ErrStoreNil    = errors.New("task store is nil")
	ErrUploaderNil = errors.New("file uploader is nil while external storage is enabled")
)
