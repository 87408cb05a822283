package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)
