package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptySelection  = errors.New("no fragments selected")
)
