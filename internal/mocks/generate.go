// Package mocks provides mock implementations for testing the search job pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our core interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByCorrelationID, Complete, Fail, Stats
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/nexus-vision/facesearch-go/internal/core JobRepository

// Generate mock for Dispatcher interface from internal/core package.
// This creates MockDispatcher with the Dispatch method.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dispatcher_mock.go github.com/nexus-vision/facesearch-go/internal/core Dispatcher
