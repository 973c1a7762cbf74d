package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

var errEmptyBody = errors.New("request body is required")

// BindNestedOrFlat binds the request body to obj. Keys may be camelCase or
// snake_case. A body wrapped in an object under key (e.g. {"client": {...}})
// is unwrapped first; otherwise the whole body is bound.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return errEmptyBody
	}

	var raw interface{}
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		return err
	}
	raw = normalizeKeys(raw)

	if m, ok := raw.(map[string]interface{}); ok && key != "" {
		if nested, ok := m[key]; ok {
			return remarshal(nested, obj)
		}
	}
	return remarshal(raw, obj)
}

// BindBody binds a flat JSON body with key normalization
func BindBody(c *gin.Context, obj interface{}) error {
	return BindNestedOrFlat(c, "", obj)
}

func remarshal(v interface{}, obj interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}

// normalizeKeys rewrites every object key in v to snake_case
func normalizeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			snake := toSnake(k)
			// An explicit snake_case key wins over its camelCase twin
			if _, exists := out[snake]; exists && snake != k {
				continue
			}
			out[snake] = normalizeKeys(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = normalizeKeys(t[i])
		}
		return t
	}
	return v
}

// toSnake converts loanAmount, LoanAmount and IDNumber to loan_amount and
// id_number. Keys already in snake_case are returned unchanged.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toCamel converts id_number to idNumber
func toCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// formValue reads a multipart or urlencoded field by its snake_case name,
// falling back to the camelCase spelling
func formValue(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.PostForm(toCamel(key)))
}

// formFiles returns the uploads for a field under any of its accepted names
func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, name := range []string{key, key + "[]", toCamel(key), toCamel(key) + "[]"} {
		if files := form.File[name]; len(files) > 0 {
			return files
		}
	}
	return nil
}

// formFile returns the first upload for a field or nil
func formFile(form *multipart.Form, key string) *multipart.FileHeader {
	if files := formFiles(form, key); len(files) > 0 {
		return files[0]
	}
	return nil
}
