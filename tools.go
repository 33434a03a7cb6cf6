//go:build tools

// Package tools pins the development tools used on pharpub so go.mod tracks them.
// Install with: go install -tags tools ./...
package tools

import (
	// Lint and format
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/tools/cmd/goimports"

	// Mock generation
	_ "github.com/golang/mock/mockgen"

	// Test runners
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "gotest.tools/gotestsum"

	// Security scan
	_ "github.com/securego/gosec/v2/cmd/gosec"
)
