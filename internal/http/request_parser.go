package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"caja/internal/core"
)

const maxBodyBytes = 1 << 20

func invalidRequest(msg string) error {
	return core.E(core.KindValidation, "parse_request", core.CodeInvalidRequest, msg)
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidRequest("request body is empty")
		}
		return invalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if dec.More() {
		return invalidRequest("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidRequest(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// optionalInt64 returns nil when key is absent or blank.
func optionalInt64(q url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidRequest(fmt.Sprintf("invalid %s %q", key, raw))
	}
	return &v, nil
}

// intParam returns def when key is absent or blank.
func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidRequest(fmt.Sprintf("invalid %s %q", key, raw))
	}
	return v, nil
}
