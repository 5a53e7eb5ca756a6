// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Balance-related errors.
var (
	ErrBalanceNotFound     = errors.New("balance not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Task-related errors.
var (
	ErrTaskNotFound      = errors.New("analysis task not found")
	ErrTaskAlreadyExists = errors.New("analysis task already exists")
	ErrTaskTerminal      = errors.New("analysis task is already terminal")
)

// Résumé-source errors.
var (
	ErrResumeNotFound    = errors.New("resume not found")
	ErrResumeUnavailable = errors.New("resume text could not be resolved")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)
