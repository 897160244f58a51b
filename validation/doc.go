// Package validation checks request structs against go-playground/validator
// tags and reports failures as INVALID_INPUT or MISSING_FIELD AppErrors
// named after the client's own field names.
package validation
