// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL accepts an http(s) base URL with no path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	if err := validateEndpointURL(rawURL, fieldName); err != nil {
		return err
	}
	u, _ := url.Parse(rawURL)
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, u.Path)
	}
	return nil
}

// validateEndpointURL accepts an http(s) URL that may carry a path but no query.
func validateEndpointURL(rawURL, fieldName string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, u.RawQuery)
	}
	return nil
}
