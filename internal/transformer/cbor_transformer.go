package transformer

import (
	"github.com/fxamacker/cbor/v2"
)

// CBORTransformer emits a sequence of CBOR data items (RFC 8742), one per record.
type CBORTransformer struct {
	mode cbor.EncMode
}

func NewCBORTransformer(_ map[string]interface{}) (Transformer, error) {
	// Canonical encoding keeps manifests byte-stable across runs.
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &CBORTransformer{mode: mode}, nil
}

func (c *CBORTransformer) Transform(data map[string]interface{}) ([]byte, error) {
	return c.mode.Marshal(data)
}

func (c *CBORTransformer) Header() ([]byte, error) {
	return []byte{}, nil
}

func (c *CBORTransformer) Footer() ([]byte, error) {
	return []byte{}, nil
}

func (c *CBORTransformer) Ext() string { return ".cbor" }

func init() {
	Register("cbor", NewCBORTransformer)
}
