package transformer

import (
	"bytes"
	"encoding/json"
)

type JSONLTransformer struct{}

func NewJSONLTransformer(_ map[string]interface{}) (Transformer, error) {
	return &JSONLTransformer{}, nil
}

func (j *JSONLTransformer) Transform(data map[string]interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (j *JSONLTransformer) Header() ([]byte, error) {
	return []byte{}, nil
}

func (j *JSONLTransformer) Footer() ([]byte, error) {
	return []byte{}, nil
}

func (j *JSONLTransformer) Ext() string { return ".jsonl" }

func init() {
	Register("jsonl", NewJSONLTransformer)
}
