// Package credentials decodes the opaque per-request credential blob into an
// ephemeral value that lives for exactly one tool call.
package credentials

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"

	"analyticsgw/pkg/problems"
)

// Credentials holds decoded tenant credential material. It is owned by the
// call that decoded it and must be Closed on every exit path; after Close the
// key material is zeroed and unrecoverable. Never log any part of it.
type Credentials struct {
	raw    []byte
	fields map[string]string
}

// Field returns a top-level string field of the credential document ("" when
// absent or non-string). Used for shape checks, never for logging.
func (c *Credentials) Field(name string) string { return c.fields[name] }

// JSON returns the decoded credential document for client construction.
// Returns nil after Close.
func (c *Credentials) JSON() []byte { return c.raw }

// Close zeroes the credential material. Safe to call more than once.
func (c *Credentials) Close() {
	for i := range c.raw {
		c.raw[i] = 0
	}
	c.raw = nil
	for k := range c.fields {
		delete(c.fields, k)
	}
}

// Codec validates decoded credentials against a deployment-configured
// required-field set. It holds no per-request state.
type Codec struct {
	required []string
}

func NewCodec(required []string) *Codec {
	return &Codec{required: append([]string(nil), required...)}
}

// Decode reverses the transport encoding and validates the document. Error
// messages name the failed constraint but never echo credential content.
func (c *Codec) Decode(encoded string) (*Credentials, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, problems.New(problems.KindInvalidCredentialFormat, "credentials are empty; expected base64-encoded JSON")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate URL-safe alphabets; callers encode with whatever their
		// base64 library defaults to.
		raw, err = base64.URLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, problems.New(problems.KindInvalidCredentialFormat, "credentials are not valid base64")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		zero(raw)
		return nil, problems.New(problems.KindInvalidCredentialFormat, "credentials are not a JSON object")
	}
	fields := make(map[string]string, len(doc))
	for k, v := range doc {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	var missing []string
	for _, name := range c.required {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		zero(raw)
		sort.Strings(missing)
		return nil, problems.Newf(problems.KindInvalidCredentialFormat,
			"credentials missing required field(s): %s", strings.Join(missing, ", "))
	}
	return &Credentials{raw: raw, fields: fields}, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
