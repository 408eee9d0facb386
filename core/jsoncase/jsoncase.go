// Package jsoncase recases the object keys of JSON documents between the
// PascalCase used by the API and the camelCase preferred by web clients.
//
// Only the first letter of a key changes, so ToPascal(ToCamel(x)) == x for
// every PascalCase document.
package jsoncase

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/goccy/go-json"
)

// Header selects the key case of a request. The only recognized value is "camel".
const Header = "X-Json-Case"

// Camel is the value of Header for camelCase clients
const Camel = "camel"

// ToPascal returns data with all object keys starting with an upper case letter
func ToPascal(data []byte) ([]byte, error) {
	return recase(data, unicode.ToUpper)
}

// ToCamel returns data with all object keys starting with a lower case letter
func ToCamel(data []byte) ([]byte, error) {
	return recase(data, unicode.ToLower)
}

func recase(data []byte, f func(rune) rune) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return data, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var doc interface{}
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	return json.Marshal(recaseValue(doc, f))
}

func recaseValue(v interface{}, f func(rune) rune) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		res := make(map[string]interface{}, len(t))
		for k, value := range t {
			res[recaseKey(k, f)] = recaseValue(value, f)
		}
		return res
	case []interface{}:
		for i := range t {
			t[i] = recaseValue(t[i], f)
		}
		return t
	}
	return v
}

func recaseKey(key string, f func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(f(r)) + key[size:]
}

// bufferedWriter holds back the response so it can be recased
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(contentType)), "application/json")
}

// Middleware recases requests and responses of clients sending "X-Json-Case: camel".
// Request bodies are converted to PascalCase before the handler runs and JSON
// responses are converted to camelCase. Other requests and non-JSON responses
// pass untouched.
func Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", Header)
		if !strings.EqualFold(r.Header.Get(Header), Camel) {
			h.ServeHTTP(w, r)
			return
		}
		rlog := logger.FromContext(r.Context())

		if r.Body != nil && r.Body != http.NoBody && (r.Header.Get("Content-Type") == "" || isJSON(r.Header.Get("Content-Type"))) {
			var body bytes.Buffer
			if _, err := body.ReadFrom(r.Body); err != nil {
				http.Error(w, "cannot read body", http.StatusBadRequest)
				return
			}
			r.Body.Close()
			converted, err := ToPascal(body.Bytes())
			if err != nil {
				// leave it to the handler to report the broken document
				converted = body.Bytes()
			}
			r.Body = io.NopCloser(bytes.NewReader(converted))
			r.ContentLength = int64(len(converted))
		}

		bw := &bufferedWriter{ResponseWriter: w}
		h.ServeHTTP(bw, r)
		if bw.status == 0 {
			bw.status = http.StatusOK
		}

		body := bw.body.Bytes()
		if isJSON(w.Header().Get("Content-Type")) && len(body) > 0 {
			converted, err := ToCamel(body)
			if err != nil {
				rlog.WithError(err).Warnln("cannot recase response")
			} else {
				body = converted
				w.Header().Del("Content-Length")
			}
		}
		w.WriteHeader(bw.status)
		if len(body) > 0 {
			w.Write(body)
		}
	})
}
