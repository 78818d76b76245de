//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	certDir  = "certs"
	certHost = "localhost"
)

var (
	certFile = filepath.Join(certDir, certHost+".pem")
	keyFile  = filepath.Join(certDir, certHost+"-key.pem")
)

// ======================================
// SETUP
// ======================================

type Setup mg.Namespace

func (Setup) Go() error {
	fmt.Println("Setting up Go environment...")

	// Check Go version
	fmt.Println("Checking Go version... (go version)")
	if err := goVersion(); err != nil {
		return err
	}

	// Install golangci-lint
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println("Installing golangci-lint...")
		if err := sh.RunV("go", "install", "github.com/golangci/golangci-lint/cmd/golangci-lint@latest"); err != nil {
			return err
		}
	}

	// Install mkcert
	if _, err := exec.LookPath("mkcert"); err != nil {
		fmt.Println("Installing mkcert...")
		if err := sh.RunV("go", "install", "filippo.io/mkcert@latest"); err != nil {
			return err
		}
	}

	fmt.Println("Go environment setup complete.")

	return nil
}

func goVersion() error {
	out, err := exec.Command("go", "version").Output()
	if err != nil {
		return err
	}

	required := struct {
		major int
		minor int
	}{
		major: 1,
		minor: 23,
	}

	re := regexp.MustCompile(`go version go([0-9]+)\.([0-9]+)`)
	matches := re.FindStringSubmatch(string(out))
	if len(matches) <= 2 {
		return fmt.Errorf("failed to parse Go version from: %s", out)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])

	fmt.Printf("go version: %d.%d (local)\n", major, minor)
	if major < required.major || (major == required.major && minor < required.minor) {
		fmt.Printf("   └─ >= %d.%d required\n", required.major, required.minor)
	}

	return nil
}

// ======================================
// TESTING
// ======================================

type Test mg.Namespace

// All runs all tests in the project
func (Test) All() error {
	fmt.Println("Running tests...")
	return sh.RunV("go", "test", "./...")
}

// Race runs all tests with the race detector
func (Test) Race() error {
	fmt.Println("Running tests with the race detector...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Coverage runs tests with coverage reporting
func (Test) Coverage() error {
	fmt.Println("Running tests with coverage...")
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// ======================================
// ECHO SERVER
// ======================================

// Cert generates a locally trusted certificate for the echo server with mkcert
func Cert() error {
	if _, err := os.Stat(certFile); err == nil {
		fmt.Println("Certificates already exist in", certDir)
		return nil
	}

	if _, err := exec.LookPath("mkcert"); err != nil {
		return fmt.Errorf("mkcert not found. Please install it first:\n  mage setup:go")
	}

	fmt.Println("Generating certificates with mkcert...")
	if err := os.MkdirAll(certDir, 0o755); err != nil {
		return err
	}

	return sh.RunV("mkcert",
		"-cert-file", certFile,
		"-key-file", keyFile,
		certHost, "127.0.0.1", "::1",
	)
}

// Serve runs the echo server with the local certificate
func Serve() error {
	mg.Deps(Cert)

	fmt.Println("Starting echo server...")
	return sh.RunV("go", "run", "./cmd/wtecho", "serve", certFile, keyFile)
}

// ServeSecured runs the echo server with the encryption overlay enabled
func ServeSecured() error {
	mg.Deps(Cert)

	fmt.Println("Starting secured echo server...")
	return sh.RunV("go", "run", "./cmd/wtecho", "serve", "--secured", certFile, keyFile)
}

// ======================================
// DEVELOPMENT UTILITIES
// ======================================

// Lint runs the linter (golangci-lint)
func Lint() error {
	fmt.Println("Running linter...")
	// Check if golangci-lint is available
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Please install it first:\n  go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest")
	}
	return sh.RunV("golangci-lint", "run")
}

// Fmt formats Go source code
func Fmt() error {
	fmt.Println("Formatting go code...")
	return sh.RunV("go", "fmt", "./...")
}

// Build builds the project
func Build() error {
	fmt.Println("Building project...")
	return sh.RunV("go", "build", "-o", "bin/wtecho", "./cmd/wtecho")
}

// Clean removes generated files
func Clean() error {
	fmt.Println("Cleaning up generated files...")
	for _, path := range []string{"./bin", "coverage.out"} {
		if err := sh.Rm(path); err != nil {
			return err
		}
	}
	return nil
}

// Help displays available commands (default target)
func Help() {
	fmt.Println("Available Mage commands:")
	fmt.Println("  mage test:all      - Run all tests")
	fmt.Println("  mage test:race     - Run all tests with the race detector")
	fmt.Println("  mage cert          - Generate a local certificate with mkcert")
	fmt.Println("  mage serve         - Run the echo server")
	fmt.Println("  mage serveSecured  - Run the echo server with the encryption overlay")
	fmt.Println("  mage lint          - Run golangci-lint")
	fmt.Println("  mage build         - Build the wtecho binary")
	fmt.Println("  mage clean         - Clean up generated files")
	fmt.Println("  mage help          - Show this help message")
	fmt.Println("")
	fmt.Println("You can also run 'mage -l' to list all available targets.")
}

// Default target - displays help when no target is specified
var Default = Help
