package repository

import (
	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/security"
)

// Re-export the repository interfaces from the domain packages
// This allows consumers to import everything they need from the repository package
// instead of having to import from multiple packages

// LoginAttemptRepository stores the login audit trail
type LoginAttemptRepository = audit.LoginAttemptRepository

// RiskSummaryRepository stores one risk summary per user
type RiskSummaryRepository = security.RiskSummaryRepository
