// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command secretctl generates and checks token signing secrets offline.
//
// # Usage
//
//	secretctl generate [--count N]
//	secretctl check [--min-length N] [--env AUTH_SIGNING_SECRET] [secret]
//
// check reads the secret from the argument, then the named environment
// variable, then stdin, and exits non-zero when it fails validation.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/taibuivan/rewards/internal/auth/secret"
)

// exitError carries a process exit code through run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return &exitError{code: 2, err: errors.New("missing subcommand")}
	}

	switch args[0] {
	case "generate":
		return runGenerate(args[1:], stdout)
	case "check":
		return runCheck(args[1:], stdin, stdout)
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return &exitError{code: 2, err: fmt.Errorf("unknown subcommand %q", args[0])}
	}
}

func runGenerate(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	count := flagSet.IntP("count", "n", 1, "number of secrets to print")
	if err := flagSet.Parse(args); err != nil {
		return &exitError{code: 2, err: err}
	}
	if *count < 1 {
		return &exitError{code: 2, err: errors.New("--count must be at least 1")}
	}

	for range *count {
		material, err := secret.GenerateMaterial()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(material))
	}
	return nil
}

func runCheck(args []string, stdin io.Reader, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
	minLength := flagSet.Int("min-length", secret.DefaultMinLength, "minimum secret length in bytes")
	envName := flagSet.String("env", "AUTH_SIGNING_SECRET", "environment variable consulted when no argument is given")
	if err := flagSet.Parse(args); err != nil {
		return &exitError{code: 2, err: err}
	}

	material, err := readSecret(flagSet.Args(), *envName, stdin)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	result := secret.Validate(material, *minLength)

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}

	if !result.IsValid {
		return &exitError{code: 1, err: errors.New("secret failed validation")}
	}
	return nil
}

func readSecret(args []string, envName string, stdin io.Reader) ([]byte, error) {
	if len(args) > 0 {
		return []byte(args[0]), nil
	}
	if value := os.Getenv(envName); value != "" {
		return []byte(value), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errors.New("no secret given")
	}
	return []byte(line), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  secretctl generate [--count N]
  secretctl check [--min-length N] [--env NAME] [secret]`)
}
