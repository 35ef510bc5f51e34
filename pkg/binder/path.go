package binder

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// PathExtractor returns the value of a named path parameter.
type PathExtractor func(r *http.Request, name string) string

// ChiParam reads path parameters from the chi route context.
func ChiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// Path fills fields tagged `path:"name"` using extract. Missing parameters
// leave the field untouched. A nil extractor falls back to ChiParam.
//
//	type webhookRequest struct {
//		Provider string `path:"provider"`
//	}
func Path(extract PathExtractor) func(r *http.Request, v any) error {
	if extract == nil {
		extract = ChiParam
	}
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return ErrInvalidTarget
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rt.NumField() {
			field := rt.Field(i)
			tag := field.Tag.Get("path")
			if tag == "" || tag == "-" || !field.IsExported() {
				continue
			}
			raw := extract(r, tag)
			if raw == "" {
				continue
			}
			if err := setField(rv.Field(i), raw); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFailedToParsePath, tag, err)
			}
		}
		return nil
	}
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}
