package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var paramValidator = validator.New(validator.WithRequiredStructEnabled())

// decodeParams maps loosely-typed job parameters onto a processor's typed
// parameter struct and runs its validation tags. Unknown keys are rejected
// so persisted jobs stay reproducible against the declared schema.
func decodeParams(params map[string]any, into any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return NewInvalidParametersError(err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return NewInvalidParametersError(err.Error())
	}

	if err := paramValidator.Struct(into); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			reasons := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				reasons = append(reasons, fmt.Sprintf("field %s failed rule %q", fe.Field(), fe.Tag()))
			}
			return NewInvalidParametersError(reasons...)
		}
		return NewInvalidParametersError(err.Error())
	}
	return nil
}

// defaultsAsMap renders a typed parameter struct back into the wire shape.
func defaultsAsMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
