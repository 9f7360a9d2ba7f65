package baas

import (
	"errors"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sqlgen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Form fields of a BaaS request.
const (
	fieldJSON   = "JSON"
	fieldAPIKey = "APIKey"
)

// request is the decoded form of one call.
type request struct {
	key     string         // presented API key, "" when none
	payload map[string]any // decoded JSON document, never nil
	err     error          // payload decode failure, reported after the gate
}

// parseRequest reads the POST form body and decodes the JSON field. Query
// string parameters are ignored. A bare APIKey
// field wins over the key inside the document. A malformed document does
// not abort parsing: the key can still be judged, and err is reported once
// the caller is authorized.
func parseRequest(r *http.Request) (*request, error) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fault.Validationf("Request body too large").
				With("Limit", tooLarge.Limit)
		}
		return nil, fault.Validationf("Invalid request body").WithFix("Send a form with a JSON field")
	}

	req := &request{payload: map[string]any{}}
	if raw := strings.TrimSpace(r.PostForm.Get(fieldJSON)); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil || doc == nil {
			req.err = fault.Validationf("Invalid JSON").
				WithFix("Send a JSON object in the JSON field")
		} else {
			req.payload = doc
		}
	}

	if r.PostForm.Has(fieldAPIKey) {
		req.key = r.PostForm.Get(fieldAPIKey)
	} else if v, ok := req.payload[fieldAPIKey]; ok {
		req.key, _ = sqlgen.Scalar(v)
	}
	return req, nil
}
