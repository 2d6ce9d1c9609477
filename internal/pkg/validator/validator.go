package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Conversation permission vocabulary
	validate.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
		perm := fl.Field().String()
		validPermissions := []string{
			"admin", "manage_role", "manage_chat", "manage_member",
			"kick_member", "mute_member", "send_message", "manage_message",
			"create_invite", "view_chat",
		}
		for _, p := range validPermissions {
			if perm == p {
				return true
			}
		}
		return false
	})

	// Conversation kind
	validate.RegisterValidation("conversation_kind", func(fl validator.FieldLevel) bool {
		kind := fl.Field().String()
		return kind == "direct" || kind == "group"
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "oneof":
			errors[field] = "Value must be one of: " + err.Param()
		case "unique":
			errors[field] = "Values must be unique"
		case "permission":
			errors[field] = "Unknown permission"
		case "conversation_kind":
			errors[field] = "Kind must be direct or group"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
