// internal/app/system/inputval/inputval.go
// Package inputval validates request payloads and domain records. Struct
// rules are go-playground/validator tags; messages are written for people,
// using a field's `label` tag when it has one.
package inputval

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"` // JSON name
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Result collects every failed rule of one Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Err returns the result as an error, or nil when it has none.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &Error{Result: r}
}

// Error wraps a failed Result so it can travel as an error.
type Error struct {
	Result *Result
}

func (e *Error) Error() string { return e.Result.All() }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return IsValidRole(fl.Field().String())
	})
	_ = v.RegisterValidation("datestr", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})
	_ = v.RegisterValidation("schoolcode", func(fl validator.FieldLevel) bool {
		return IsValidSchoolCode(fl.Field().String())
	})
	_ = v.RegisterValidation("rowid", func(fl validator.FieldLevel) bool {
		return IsValidRowID(fl.Field().String())
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsValidHTTPURL(fl.Field().String())
	})
	return v
}

// Validate checks v (a struct or pointer to struct) against its tags.
func Validate(v any) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe, label(t, fe)),
		})
	}
	return res
}

func label(t reflect.Type, fe validator.FieldError) string {
	if t != nil && t.Kind() == reflect.Struct {
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if l := sf.Tag.Get("label"); l != "" {
				return l
			}
		}
	}
	return humanize(fe.Field())
}

// humanize turns "first_name" into "First name".
func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		return label + " must be at most " + fe.Param() + " characters."
	case "min":
		return label + " must be at least " + fe.Param() + " characters."
	case "email":
		return "A valid email address is required."
	case "oneof":
		return label + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	case "role":
		return label + " must be admin or staff."
	case "datestr":
		return label + " must be a date in YYYY-MM-DD form."
	case "schoolcode":
		return label + " may only contain letters, digits and dashes."
	case "rowid":
		return label + " must be a valid id."
	case "httpurl":
		return label + " must be an http or https URL."
	}
	return label + " is invalid."
}

var (
	emailLocalRE  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*$`)
	emailDomainRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)
	schoolCodeRE  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,23}$`)
)

// IsValidEmail accepts a bare address (no display name). Single-label
// domains are allowed for development hosts.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	return emailLocalRE.MatchString(local) && emailDomainRE.MatchString(domain)
}

// IsValidHTTPURL reports whether s is an absolute http(s) URL with a host.
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidRowID reports whether s is a UUID, the id format of every row.
func IsValidRowID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// IsValidRole reports whether s is a known account role.
func IsValidRole(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "staff":
		return true
	}
	return false
}

// IsValidDate reports whether s is a YYYY-MM-DD calendar date.
func IsValidDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// IsValidSchoolCode reports whether s can be used as a school code.
func IsValidSchoolCode(s string) bool {
	return schoolCodeRE.MatchString(s)
}
