// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateEndpointURL checks an S3-compatible endpoint: http or https,
// a host, and no path or query.
func validateEndpointURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateReplicaURL checks a replica URL template. It must carry a scheme
// the replication tool understands and a {tenant} placeholder, otherwise
// every tenant would share one replica.
func validateReplicaURL(rawURL, fieldName string) error {
	if !strings.Contains(rawURL, "{tenant}") {
		return fmt.Errorf("%s must contain the {tenant} placeholder", fieldName)
	}
	parsedURL, err := url.Parse(strings.ReplaceAll(rawURL, "{tenant}", "tenant"))
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("%s must include a scheme such as s3://", fieldName)
	}
	if parsedURL.Scheme != "file" && parsedURL.Host == "" {
		return fmt.Errorf("%s host (bucket) is required", fieldName)
	}
	return nil
}
