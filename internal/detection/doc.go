// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package detection scores accounts for suspicious authentication activity.
//
// An Account aggregates one account's login records, newest first. Only the
// leading records inside the active window (plus the time needed to cross
// half the Earth at MinImpossibleKph) are scored; older records are kept for
// context.
//
// Scoring runs in three passes, each returning true when the account passes
// and can be dropped from review:
//
//	Pass 1  FirstVibeCheck   local heuristics: failures, fraud, impossible
//	                         travel, device management portal failures
//	Pass 2  SecondVibeCheck  directory metadata: newly created accounts and
//	                         activity confined to the home state
//	Pass 3  CloserTo/Relocate + FirstVibeCheck
//	                         provider geolocation may move records closer
//	                         to neighbouring activity or home, then pass 1
//	                         runs again on the corrected records
//
// Pass 1 always resets the score, reasons and record flags before
// recomputing, so running it repeatedly over the same records yields the
// same result.
//
// Score weights:
//
//	failure  1 per unexplained failure
//	fraud    20 per fraud result
//	dmp      2 per device management portal failure
//	travel   min(log2(kph), 15) per impossible hop, floored once at the end
package detection
