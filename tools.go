//go:build tools
// +build tools

// Package tools pins tool dependencies (mockgen, run by go generate) in
// go.mod so that regenerating mocks works on a fresh checkout.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
