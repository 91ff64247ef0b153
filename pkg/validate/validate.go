// Package validate checks struct fields against rules in a `validate` tag.
//
// Rules are comma-separated:
//
//	required          not zero or blank
//	nullable          skip the remaining rules when the field is empty
//	min=N / max=N     string length in runes, or numeric value
//	gte=N / lte=N     numeric bounds
//	date              YYYY-MM-DD or RFC3339
//	url               absolute http(s) URL
//	in=a|b|c          one of the listed values
//
// Example:
//
//	type Input struct {
//	    Name   string `json:"name"   validate:"required,max=120"`
//	    Status string `json:"status" validate:"required,in=To Do|In Progress|Completed"`
//	    Link   string `json:"link"   validate:"nullable,url"`
//	}
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Struct validates the exported fields of v that carry a `validate` tag and
// returns field name to message. Only the first failing rule per field is
// reported.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := sf.Tag.Get("validate")
		if tag == "" || !sf.IsExported() {
			continue
		}

		name := jsonName(sf)
		value := rv.Field(i)
		rules := strings.Split(tag, ",")

		if contains(rules, "nullable") && isEmpty(value) {
			continue
		}
		for _, rule := range rules {
			key, param, _ := strings.Cut(strings.TrimSpace(rule), "=")
			check, ok := checks[key]
			if !ok {
				continue
			}
			if msg := check(name, param, value); msg != "" {
				errs[name] = msg
				break
			}
		}
	}
	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

type check func(field, param string, v reflect.Value) string

var checks = map[string]check{
	"nullable": func(string, string, reflect.Value) string { return "" },

	"required": func(field, _ string, v reflect.Value) string {
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}
		return ""
	},

	"min": func(field, param string, v reflect.Value) string {
		n := number(param)
		if isNumeric(v) {
			if toFloat(v) < n {
				return fmt.Sprintf("The %s must be at least %s.", field, param)
			}
		} else if float64(utf8.RuneCountInString(text(v))) < n {
			return fmt.Sprintf("The %s must be at least %s characters.", field, param)
		}
		return ""
	},

	"max": func(field, param string, v reflect.Value) string {
		n := number(param)
		if isNumeric(v) {
			if toFloat(v) > n {
				return fmt.Sprintf("The %s must not be greater than %s.", field, param)
			}
		} else if float64(utf8.RuneCountInString(text(v))) > n {
			return fmt.Sprintf("The %s must not exceed %s characters.", field, param)
		}
		return ""
	},

	"gte": func(field, param string, v reflect.Value) string {
		if !isNumeric(v) || toFloat(v) < number(param) {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
		return ""
	},

	"lte": func(field, param string, v reflect.Value) string {
		if !isNumeric(v) || toFloat(v) > number(param) {
			return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
		}
		return ""
	},

	"date": func(field, _ string, v reflect.Value) string {
		s := text(v)
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return ""
		}
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return ""
		}
		return fmt.Sprintf("The %s is not a valid date.", field)
	},

	"url": func(field, _ string, v reflect.Value) string {
		u, err := url.ParseRequestURI(text(v))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("The %s must be a valid URL.", field)
		}
		return ""
	},

	"in": func(field, param string, v reflect.Value) string {
		s := text(v)
		for _, allowed := range strings.Split(param, "|") {
			if s == strings.TrimSpace(allowed) {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	},
}

func contains(rules []string, want string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == want {
			return true
		}
	}
	return false
}

func text(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return 0
}

func number(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name[:1]) + f.Name[1:]
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = name[:idx]
	}
	return name
}
