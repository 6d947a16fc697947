// Syncroom - Realtime Watch Party Synchronization Hub
// Copyright 2026 Syncroom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/syncroom/syncroom

/*
Package ratelimit bounds per-user message rates and per-address connection
attempts.

Three mechanisms ship:

  - FixedWindowLimiter: the default path. Counters live in the shared store
    (INCR with a TTL equal to the window) so limits hold across instances;
    while the store is unreachable an equivalent process-local window takes
    over, swept on a 10s cadence.

  - TokenBucketLimiter: an optional smoothing variant built on
    golang.org/x/time/rate, capacity 2x the cap with continuous refill.
    Selected with RATE_LIMIT_MODE=tokenbucket. Always process-local.

  - AdmissionGate: a per-source-address sliding window over connection
    attempts, checked before the protocol upgrade. Expired windows are
    swept on a 60s cadence.

Denials carry the action and the retry horizon; the hub forwards them to
the offending session only.
*/
package ratelimit
