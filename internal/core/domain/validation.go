package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var thumbprintPattern = regexp.MustCompile(`^[0-9A-F]{40}$`)

// Validator wraps go-playground/validator with certificate-specific custom validators.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a new validation instance with the custom validators registered.
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("thumbprint", validateThumbprintCustom)
	_ = validate.RegisterValidation("vault_uri", validateVaultURICustom)
	_ = validate.RegisterValidation("source_type", validateSourceTypeCustom)
	_ = validate.RegisterValidation("duration", validateDurationCustom)
	_ = validate.RegisterValidation("log_level", validateLogLevelCustom)

	return &Validator{
		validator: validate,
	}
}

// Validate validates a struct using go-playground/validator.
func (v *Validator) Validate(s interface{}) error {
	return v.validator.Struct(s)
}

// ValidateVar validates a single variable using the specified tag.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validator.Var(field, tag)
}

// Thumbprints are 40 hex digits once separators are stripped.
func validateThumbprintCustom(fl validator.FieldLevel) bool {
	thumbprint := fl.Field().String()
	if thumbprint == "" {
		return true // Empty values handled by 'required' tag
	}
	return thumbprintPattern.MatchString(NormalizeThumbprint(thumbprint))
}

// Vault addresses must be absolute http(s) URLs.
func validateVaultURICustom(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func validateSourceTypeCustom(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return ParseSourceType(value).IsKnown()
}

// Duration custom validator for Go duration strings.
func validateDurationCustom(fl validator.FieldLevel) bool {
	duration := fl.Field().String()
	if duration == "" {
		return true // Empty durations handled by 'required' tag
	}

	_, err := time.ParseDuration(duration)
	return err == nil
}

func validateLogLevelCustom(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

// ValidationError wraps go-playground validator errors with additional context.
type ValidationError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", ve.Field, ve.Message)
}

// ConvertValidationErrors converts go-playground validation errors to our custom format.
func ConvertValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, validationErr := range validationErrors {
			errors = append(errors, ValidationError{
				Field:   validationErr.Namespace(),
				Tag:     validationErr.Tag(),
				Value:   validationErr.Value(),
				Message: getCustomErrorMessage(validationErr),
			})
		}
	}

	return errors
}

// getCustomErrorMessage provides human-readable error messages for validation failures.
func getCustomErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hostname_port":
		return "must be a host:port address (e.g., :9464)"
	case "thumbprint":
		return "must be a 40 digit hex SHA-1 thumbprint"
	case "vault_uri":
		return "must be an absolute http(s) URL (e.g., https://vault.internal:8200)"
	case "source_type":
		return fmt.Sprintf("must be %s or %s", SourceTypeRemoteSecret, SourceTypeLocalKeystore)
	case "duration":
		return "must be a valid duration (e.g., 10s, 5m, 1h)"
	case "log_level":
		return "must be one of: debug, info, warn, error"
	default:
		return fmt.Sprintf("validation failed for tag '%s'", fe.Tag())
	}
}

// GlobalValidator is the global validator instance for convenience.
var GlobalValidator = NewValidator()

// ValidateStruct is a convenience function using the global validator.
func ValidateStruct(s interface{}) error {
	return GlobalValidator.Validate(s)
}
