// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package validation provides request validation using go-playground/validator v10.
//
// A single validator is built on first use and shared. Besides the built-in
// tags it registers the identifiers the API accepts:
//
//	account   an account name (2 to 19 ASCII letters or digits)
//	mac       a MAC address, either case, ':' or '-' separated
//	ipv4addr  a dotted-quad IPv4 address
//
// # Usage
//
//	type scanRequest struct {
//	    AccountHours int `json:"account_hours" validate:"required,min=1,max=720"`
//	    HistoryHours int `json:"history_hours" validate:"required,gtefield=AccountHours,max=2160"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // respond 400 with apiErr
//	}
//
// Single values such as path parameters go through ValidateVar:
//
//	if verr := validation.ValidateVar("name", name, "account"); verr != nil {
//	    ...
//	}
//
// Error messages are phrased for API clients ("days must be at most 90") and
// ToAPIError produces the VALIDATION_ERROR body used across the API.
package validation
