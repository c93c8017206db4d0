package transformer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

type CSVTransformer struct {
	fields []string
}

func NewCSVTransformer(opts map[string]interface{}) (Transformer, error) {
	var fields []string
	switch v := opts["fields"].(type) {
	case []string:
		fields = v
	case []interface{}:
		for _, f := range v {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("CSV transformer requires fields option")
	}
	return &CSVTransformer{fields: fields}, nil
}

func (c *CSVTransformer) Transform(data map[string]interface{}) ([]byte, error) {
	row := make([]string, len(c.fields))
	for i, key := range c.fields {
		switch val := data[key].(type) {
		case nil:
			row[i] = ""
		case time.Time:
			row[i] = val.UTC().Format(time.RFC3339)
		default:
			row[i] = fmt.Sprintf("%v", val)
		}
	}
	return writeCSV(row)
}

func (c *CSVTransformer) Header() ([]byte, error) {
	return writeCSV(c.fields)
}

func (c *CSVTransformer) Footer() ([]byte, error) {
	return []byte{}, nil
}

func (c *CSVTransformer) Ext() string { return ".csv" }

func writeCSV(row []string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func init() {
	Register("csv", NewCSVTransformer)
}
