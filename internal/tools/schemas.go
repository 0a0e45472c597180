package tools

// Param schemas for the tool table. Extra keys are tolerated everywhere for
// forward compatibility; required-ness and types are enforced here, domain
// rules (date markers, property shape) in params.go.

const accountSummariesSchema = `{
  "type": "object",
  "required": ["tenant_id", "tenant_credentials"],
  "properties": {
    "tenant_id": {"type": "string", "minLength": 1},
    "tenant_credentials": {"type": "string", "minLength": 1}
  }
}`

const propertyDetailsSchema = `{
  "type": "object",
  "required": ["tenant_id", "tenant_credentials", "property_id"],
  "properties": {
    "tenant_id": {"type": "string", "minLength": 1},
    "tenant_credentials": {"type": "string", "minLength": 1},
    "property_id": {"type": ["string", "integer"]}
  }
}`

const runReportSchema = `{
  "type": "object",
  "required": ["tenant_id", "tenant_credentials", "property_id", "date_ranges", "dimensions", "metrics"],
  "properties": {
    "tenant_id": {"type": "string", "minLength": 1},
    "tenant_credentials": {"type": "string", "minLength": 1},
    "property_id": {"type": ["string", "integer"]},
    "date_ranges": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["start_date", "end_date"],
        "properties": {
          "start_date": {"type": "string", "minLength": 1},
          "end_date": {"type": "string", "minLength": 1},
          "name": {"type": "string"}
        }
      }
    },
    "dimensions": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "metrics": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "limit": {"type": "integer", "minimum": 0},
    "offset": {"type": "integer", "minimum": 0}
  }
}`

const runRealtimeReportSchema = `{
  "type": "object",
  "required": ["tenant_id", "tenant_credentials", "property_id", "dimensions", "metrics"],
  "properties": {
    "tenant_id": {"type": "string", "minLength": 1},
    "tenant_credentials": {"type": "string", "minLength": 1},
    "property_id": {"type": ["string", "integer"]},
    "dimensions": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "metrics": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "limit": {"type": "integer", "minimum": 0}
  }
}`
