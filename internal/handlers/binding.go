package handlers

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindNestedOrFlat binds the request body to obj and runs the binding
// validator. A body of the form {"<key>": {...}} binds the nested object;
// anything else binds flat.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	// Restore body for subsequent reads
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	payload := bodyBytes
	var nestedMap map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &nestedMap); err == nil {
		if val, ok := nestedMap[key]; ok {
			// the key is present, so its content must fit obj
			payload = val
		}
	}

	if err := json.Unmarshal(payload, obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}
