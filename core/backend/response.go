package backend

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/csql"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/apae-gestao/apae/core/schema"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DateLayout is the layout of dates in query parameters
const DateLayout = "2006-01-02"

const maxBodySize = 1 << 20

// WriteJSON writes v with status. For http.StatusOK the response carries an
// ETag and a matching If-None-Match is answered with 304.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	jsonData, err := json.MarshalWithOption(v, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4001: cannot marshal response")
		http.Error(w, "Error 4001", http.StatusInternalServerError)
		return
	}
	writeJSONData(w, r, status, jsonData)
}

func writeJSONData(w http.ResponseWriter, r *http.Request, status int, jsonData []byte) {
	if status == http.StatusOK {
		etag := bytesToEtag(jsonData)
		w.Header().Set("Etag", etag)
		if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// WriteError maps err to a status code:
//
//	repository.ErrNotFound              404
//	repository.ErrConflict              409
//	repository.ErrReference             409
//	core.ErrValidation, invalid uuids   400
//	anything else                       500, logged with code
//
// Schema violations are answered with the *schema.ValidationError as JSON.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, r, http.StatusBadRequest, verr)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrReference):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, core.ErrValidation), csql.IsInvalidTextRepresentation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		rlog.WithError(err).Errorf("Error 4002: %s %s", r.Method, r.URL.Path)
		http.Error(w, "Error 4002", http.StatusInternalServerError)
	}
}

// ReadJSON reads the request body into v. Errors wrap core.ErrValidation.
func ReadJSON(r *http.Request, v interface{}) error {
	data, err := ReadBody(r)
	if err != nil {
		return err
	}
	return unmarshalBody(data, v)
}

// ReadBody reads the request body, at most 1 MB
func ReadBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, core.Validationf("cannot read body: %v", err)
	}
	if len(data) > maxBodySize {
		return nil, core.Validationf("body too large")
	}
	return data, nil
}

func unmarshalBody(data []byte, v interface{}) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return core.Validationf("empty body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.Validationf("invalid body: %v", err)
	}
	return nil
}

// PathID returns the uuid path variable name
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	value := mux.Vars(r)[name]
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, core.Validationf("invalid %s '%s'", name, value)
	}
	return id, nil
}

// QueryDay parses the query parameter name as date. If the parameter is
// missing, fallback is returned.
func QueryDay(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	day, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, core.Validationf("parameter '%s' must be a date like 2024-05-31", name)
	}
	return day, nil
}

// QueryUUID parses the optional query parameter name
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, core.Validationf("parameter '%s': invalid uuid", name)
	}
	return &id, nil
}

// CheckParameters returns an error if the request has query parameters other than allowed
func CheckParameters(r *http.Request, allowed ...string) error {
	for key := range r.URL.Query() {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return core.Validationf("parameter '%s': unknown query parameter", key)
		}
	}
	return nil
}

func bytesToEtag(data []byte) string {
	return fmt.Sprintf("\"%x\"", md5.Sum(data))
}

func bytesPlusTotalCountToEtag(data []byte, totalCount int) string {
	return bytesToEtag(append([]byte(fmt.Sprintf("%d:", totalCount)), data...))
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(s, " \"")
		t := strings.Trim(etag, " \"")
		if s == t {
			return true
		}
	}
	return false
}
