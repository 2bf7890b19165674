// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package options

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/datalith/apierr"
)

// validate is the shared struct validator. Validator instances cache struct
// metadata, so one per process is the intended usage.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct-tag validation and converts the first failure
// into a ConfigurationError rooted at fieldPath.
func validateStruct(s any, fieldPath string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		ve := verrs[0]
		// Namespace is "Type.Field[.Inner]"; drop the type segment.
		ns := ve.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		return &apierr.ConfigurationError{
			FieldPath: joinPath(fieldPath, lowerFirst(ns)),
			Message:   "failed validation rule '" + ve.Tag() + "'",
		}
	}
	return &apierr.ConfigurationError{FieldPath: fieldPath, Message: err.Error()}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var keyspaceNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{1,48}$`)

// ValidateKeyspaceName checks the server's keyspace naming rule: 1-48 word
// characters.
func ValidateKeyspaceName(name, fieldPath string) error {
	if !keyspaceNameRe.MatchString(name) {
		return &apierr.ConfigurationError{
			FieldPath: fieldPath,
			Message:   "keyspace name must match [a-zA-Z0-9_]{1,48}",
		}
	}
	return nil
}

// ValidateSourceName checks collection/table naming, same rule as keyspaces.
func ValidateSourceName(name, fieldPath string) error {
	if !keyspaceNameRe.MatchString(name) {
		return &apierr.ConfigurationError{
			FieldPath: fieldPath,
			Message:   "collection/table name must match [a-zA-Z0-9_]{1,48}",
		}
	}
	return nil
}
