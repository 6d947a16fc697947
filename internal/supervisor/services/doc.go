// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

// Package services adapts hub components to the suture v4 Serve pattern.
//
// Each wrapper implements suture.Service plus fmt.Stringer for log
// identification. Return values follow suture semantics: an error means
// crash-and-restart, ctx.Err() means clean shutdown.
//
// The wrappers define their own small interfaces instead of importing
// the wrapped packages, which keeps this package free of dependency
// cycles and lets tests substitute mocks.
package services
