// Package validation validates configuration and request structs using
// struct tags.
//
//	type SpeakRequest struct {
//	    Text   string `json:"text" validate:"required,max=5000"`
//	    Locale string `json:"locale" validate:"omitempty,bcp47_language_tag"`
//	}
//	err := validation.Validate(req)
//
// Failures are returned as an *errors.AppError with code INVALID_INPUT and a
// "fields" detail listing each offending field.
package validation
