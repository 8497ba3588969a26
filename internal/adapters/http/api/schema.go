package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodyBytes = 1 << 20

const teamMemberSchema = `{
  "type": "object",
  "required": ["id", "name", "position", "team", "cost"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "name": {"type": "string"},
    "position": {"type": ["string", "integer"]},
    "team": {"type": "string"},
    "cost": {"type": "number", "minimum": 0},
    "predicted_points": {"type": ["number", "null"]},
    "starter": {"type": "boolean"},
    "captain": {"type": "boolean"},
    "status": {"type": "string"},
    "purchase_cost": {"type": ["number", "null"], "minimum": 0}
  }
}`

func requestSchema(extraRequired, extraProperties string) string {
	return `{
  "type": "object",
  "required": ["team", "gameweek"` + extraRequired + `],
  "properties": {
    "team": {"type": "array", "items": ` + teamMemberSchema + `},
    "gameweek": {"type": "integer"},
    "subscription_tier": {"type": "string"}` + extraProperties + `
  }
}`
}

var (
	rateSchema     = mustSchema(requestSchema("", ""))
	transferSchema = mustSchema(requestSchema(`, "budget"`, `,
    "budget": {"type": "number"}`))
	captainSchema = mustSchema(requestSchema("", ""))
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return schema
}

// decodeBody reads the request body, validates it against schema and decodes
// it into dst.
func decodeBody(r *http.Request, w http.ResponseWriter, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ErrBodyTooBig
		}
		return fmt.Errorf("%w: read body: %w", ErrBadRequest, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %w", ErrBadRequest, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(errs, "; "))
	}

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
