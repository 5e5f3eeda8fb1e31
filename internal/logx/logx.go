// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logx adds a session-id prefix to the standard logger, so
// multi-session log output stays greppable without adopting a
// structured logging library.
package logx

import "log"

// Session returns a logger-shaped printf that prefixes every line with
// the session id.
func Session(id string) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		log.Printf("[%s] "+format, append([]interface{}{id}, args...)...)
	}
}
