// Package mocks provides generated mock implementations for testing webgate.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// port interfaces. The mocks are generated using go:generate directives and
// provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for AuditRecorder interface from internal/ports.
// This creates MockAuditRecorder with the Record method.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_recorder_mock.go github.com/careassist/webgate/internal/ports AuditRecorder
