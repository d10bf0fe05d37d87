package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// FirstYear is the first season with data.
const FirstYear = 1992

var (
	teamKeyRe     = regexp.MustCompile(`^frc\d+$`)
	eventKeyRe    = regexp.MustCompile(`^[0-9]{4}[a-z0-9]+$`)
	matchKeyRe    = regexp.MustCompile(`^[0-9]{4}[a-z0-9]+_(qm|ef|qf|sf|f)\d+(m\d+)?$`)
	districtKeyRe = regexp.MustCompile(`^[0-9]{4}[a-z]+$`)
)

var messages = map[string]string{
	"numeric":      "%s is not a valid number",
	"team_key":     "%s is not a valid team key",
	"event_key":    "%s is not a valid event key",
	"match_key":    "%s is not a valid match key",
	"district_key": "%s is not a valid district key",
	"year":         "%s is not a valid year",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "team_key", matches(teamKeyRe))
	mustRegister(v, "event_key", matches(eventKeyRe))
	mustRegister(v, "match_key", matches(matchKeyRe))
	mustRegister(v, "district_key", matches(districtKeyRe))
	mustRegister(v, "year", func(fl validator.FieldLevel) bool {
		year, err := strconv.Atoi(fl.Field().String())
		return err == nil && year >= FirstYear && year <= MaxYear()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// MaxYear is the latest season the API accepts.
func MaxYear() int {
	return time.Now().Year() + 1
}

// Field names one request value and the validator tags it must satisfy.
type Field struct {
	Name  string
	Tag   string
	Value func(r *http.Request) string
}

// PathParam validates a chi URL parameter.
func PathParam(name, tag string) Field {
	return Field{
		Name:  name,
		Tag:   tag,
		Value: func(r *http.Request) string { return chi.URLParam(r, name) },
	}
}

// QueryParam validates a query string value.
func QueryParam(name, tag string) Field {
	return Field{
		Name:  name,
		Tag:   tag,
		Value: func(r *http.Request) string { return r.URL.Query().Get(name) },
	}
}

// Validate runs every field and returns one {name: message} per failure.
func Validate(r *http.Request, fields ...Field) []map[string]string {
	var failures []map[string]string
	for _, f := range fields {
		value := f.Value(r)
		err := validate.Var(value, f.Tag)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			failures = append(failures, map[string]string{f.Name: err.Error()})
			continue
		}
		for _, fe := range verrs {
			failures = append(failures, map[string]string{f.Name: message(fe.Tag(), f.Name, value)})
		}
	}
	return failures
}

func message(tag, name, value string) string {
	if tag == "required" {
		return name + " is required"
	}
	format, ok := messages[tag]
	if !ok {
		format = "%s is invalid"
	}
	return fmt.Sprintf(format, value)
}
