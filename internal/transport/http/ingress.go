package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"omerta/internal/store"
)

// decisionSchema validates one normalized decision object before it is
// handed to the ledger. Extraction below is tolerant about the payload
// shape; validation is strict about field types.
const decisionSchema = `{
  "type": "object",
  "required": ["asset", "action"],
  "properties": {
    "asset": {"type": "string", "minLength": 1},
    "action": {"type": "string"},
    "source": {"type": "string"},
    "reason": {"type": "string"},
    "reference_price": {"type": "number", "exclusiveMinimum": 0},
    "horizon_days": {"type": "integer", "minimum": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "meta": {"type": "object"}
  }
}`

var compiledDecisionSchema = mustCompileSchema(decisionSchema)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("decision.json")
}

// ParseDecisionPayload accepts the three shapes producers actually send:
//
//	[{"asset": "BTC", "action": "buy", ...}, ...]
//	{"decisions": [...]}                       (wrapped array)
//	{"BTC": {"action": "buy", ...}, ...}       (map keyed by asset)
//	{"asset": "BTC", "action": "buy", ...}     (single object)
//
// and returns normalized ledger inputs.
func ParseDecisionPayload(raw []byte) ([]store.DecisionInput, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("invalid json")
	}
	parsed := gjson.Parse(body)

	var items []gjson.Result
	switch {
	case parsed.IsArray():
		items = parsed.Array()
	case parsed.IsObject():
		if decisions := parsed.Get("decisions"); decisions.Exists() {
			if !decisions.IsArray() {
				return nil, fmt.Errorf("decisions must be an array")
			}
			items = decisions.Array()
		} else if parsed.Get("action").Exists() {
			items = []gjson.Result{parsed}
		} else {
			// Map keyed by asset: fold the key into each object.
			var mapErr error
			parsed.ForEach(func(key, value gjson.Result) bool {
				if !value.IsObject() {
					mapErr = fmt.Errorf("entry %q must be an object", key.String())
					return false
				}
				merged, err := withAssetKey(value, key.String())
				if err != nil {
					mapErr = err
					return false
				}
				items = append(items, merged)
				return true
			})
			if mapErr != nil {
				return nil, mapErr
			}
		}
	default:
		return nil, fmt.Errorf("payload must be a json array or object")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("payload contains no decisions")
	}

	out := make([]store.DecisionInput, 0, len(items))
	for i, item := range items {
		in, err := toDecisionInput(item)
		if err != nil {
			return nil, fmt.Errorf("decision %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// withAssetKey injects the map key as the asset field unless the object
// already carries one.
func withAssetKey(value gjson.Result, asset string) (gjson.Result, error) {
	if value.Get("asset").Exists() {
		return value, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(value.Raw), &obj); err != nil {
		return gjson.Result{}, err
	}
	obj["asset"] = asset
	raw, err := json.Marshal(obj)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Parse(string(raw)), nil
}

func toDecisionInput(item gjson.Result) (store.DecisionInput, error) {
	if !item.IsObject() {
		return store.DecisionInput{}, fmt.Errorf("must be an object")
	}
	var doc any
	if err := json.Unmarshal([]byte(item.Raw), &doc); err != nil {
		return store.DecisionInput{}, err
	}
	if err := compiledDecisionSchema.Validate(doc); err != nil {
		return store.DecisionInput{}, fmt.Errorf("schema: %v", err)
	}

	in := store.DecisionInput{
		Asset:  item.Get("asset").String(),
		Action: item.Get("action").String(),
		Source: item.Get("source").String(),
		Reason: item.Get("reason").String(),
	}
	if ref := item.Get("reference_price"); ref.Exists() {
		v := ref.Float()
		in.ReferencePrice = &v
	}
	if h := item.Get("horizon_days"); h.Exists() {
		v := int(h.Int())
		in.HorizonDays = &v
	}
	if conf := item.Get("confidence"); conf.Exists() {
		v := conf.Float()
		in.Confidence = &v
	}
	if meta := item.Get("meta"); meta.IsObject() {
		m := make(map[string]any)
		if err := json.Unmarshal([]byte(meta.Raw), &m); err == nil && len(m) > 0 {
			in.Meta = m
		}
	}
	return in, nil
}
