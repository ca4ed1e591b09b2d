package intake

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/model"
)

// mergePatch applies an RFC 7386 merge patch to doc. Objects merge key by
// key, null deletes a key and anything else replaces the target value.
func mergePatch(doc, patch json.RawMessage) (json.RawMessage, error) {
	var p any
	if err := decodeJSON(patch, &p); err != nil {
		return nil, eris.Wrapf(model.ErrInvalidInput, "intake: patch is not valid JSON: %v", err)
	}
	if _, ok := p.(map[string]any); !ok {
		return nil, eris.Wrap(model.ErrInvalidInput, "intake: patch must be a JSON object")
	}

	var d any
	if len(bytes.TrimSpace(doc)) > 0 {
		if err := decodeJSON(doc, &d); err != nil {
			return nil, eris.Wrap(err, "intake: stored payload is not valid JSON")
		}
	}

	out, err := json.Marshal(mergeValue(d, p))
	if err != nil {
		return nil, eris.Wrap(err, "intake: encode merged payload")
	}
	return out, nil
}

func mergeValue(target, patch any) any {
	pm, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	tm, ok := target.(map[string]any)
	if !ok {
		tm = map[string]any{}
	}
	for k, v := range pm {
		if v == nil {
			delete(tm, k)
			continue
		}
		tm[k] = mergeValue(tm[k], v)
	}
	return tm
}

// decodeJSON keeps numbers as json.Number so integers survive a round trip.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// hasBody reports whether a request carried a draft.
func hasBody(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}
