package domain

import "errors"

// ErrInvalidInput malformed position or duration; the caller must fix the request
var ErrInvalidInput = errors.New("invalid position or duration")

// ErrLessonNotFound the lesson id does not resolve in the catalog
var ErrLessonNotFound = errors.New("lesson not found")

// ErrStoreConflict transient store failure (timeout, lock conflict); safe to retry
var ErrStoreConflict = errors.New("progress store conflict, retry")
