//go:build mage

// Package main provides build targets for the todoapi project using Mage.
//
// Usage:
//
//	mage build          Compile todoapi binary to bin/
//	mage test           Run all tests
//	mage race           Run all tests with the race detector
//	mage lint           Run golangci-lint
//	mage migrate        Apply migrations to the configured database
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "todoapi"
	binaryDir  = "bin"
	cmdDir     = "./cmd/todoapi"
)

// Build compiles the todoapi binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector.
func Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Migrate builds the binary and applies pending migrations.
func Migrate() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "migrate")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
