// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package validation wraps go-playground/validator for API request
// bodies and query parameters.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pockettv/pockettv/internal/models"
)

// Validator validates tagged request structs.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator using JSON tag names in error messages so
// clients see the field names they actually sent.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate checks a tagged struct and returns a validation error
// suitable for ToAPIError.
func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

// ToAPIError converts a validation failure into the API error shape,
// one detail entry per failing field.
func ToAPIError(err error) *models.APIError {
	apiErr := &models.APIError{
		Code:    models.ErrCodeValidation,
		Message: "request validation failed",
		Details: make(map[string]string),
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := strings.ToLower(fe.Field())
			apiErr.Details[field] = fmt.Sprintf("failed on %q constraint", fe.Tag())
		}
		return apiErr
	}

	apiErr.Message = err.Error()
	return apiErr
}
