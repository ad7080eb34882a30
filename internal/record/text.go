// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package record

import "fmt"

// The analyst labels written by MarshalText are read back here so that
// archived accounts decode to the values they were encoded from. Labels of
// the Other kinds are kept verbatim as Raw.

// UnmarshalText parses an analyst label.
func (f *Factor) UnmarshalText(text []byte) error {
	for k := FactorNone; k <= FactorSecurityKey; k++ {
		if k.String() == string(text) {
			*f = k
			return nil
		}
	}
	*f = FactorNone
	return nil
}

// UnmarshalText parses an analyst label.
func (i *Integration) UnmarshalText(text []byte) error {
	for k := IntegrationNone; k < IntegrationOther; k++ {
		if c := (Integration{Kind: k}); c.String() == string(text) {
			*i = c
			return nil
		}
	}
	*i = Integration{Kind: IntegrationOther, Raw: string(text)}
	return nil
}

// UnmarshalText parses an analyst label.
func (r *Reason) UnmarshalText(text []byte) error {
	for k := ReasonNone; k < ReasonOther; k++ {
		if c := (Reason{Kind: k}); c.String() == string(text) {
			*r = c
			return nil
		}
	}
	*r = Reason{Kind: ReasonOther, Raw: string(text)}
	return nil
}

// UnmarshalText parses an analyst label.
func (r *Result) UnmarshalText(text []byte) error {
	for k := ResultNone; k < ResultOther; k++ {
		if c := (Result{Kind: k}); c.String() == string(text) {
			*r = c
			return nil
		}
	}
	*r = Result{Kind: ResultOther, Raw: string(text)}
	return nil
}

// UnmarshalText parses an analyst label.
func (f *FlagReason) UnmarshalText(text []byte) error {
	for k := FlagFraud; k <= FlagTravel; k++ {
		if k.String() == string(text) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown flag reason %q", text)
}
