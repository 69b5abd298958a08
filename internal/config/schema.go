package config

// definitionSchema validates the shape of sts.yaml. Enum checks on the
// adapter platform are deliberately left to the adapter factory so an
// unsupported platform surfaces as a ConfigurationError, not a schema
// failure.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["adapter", "audit"],
  "additionalProperties": false,
  "properties": {
    "jwt": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "issuer": {"type": "string"},
        "audience": {"type": "string"},
        "claim": {"type": "string"},
        "secret": {"type": "string"},
        "public-key": {"type": "string"}
      }
    },
    "client": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "client-id": {"type": "string"},
        "client-secret": {"type": "string"}
      }
    },
    "credentials": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "duration": {"type": "integer", "minimum": 0},
        "username-length": {"type": "integer", "minimum": 0},
        "password-length": {"type": "integer", "minimum": 0},
        "roles": {"type": "array", "items": {"type": "string"}},
        "retention": {"type": "string", "enum": ["expire", "delete"]}
      }
    },
    "adapter": {
      "type": "object",
      "required": ["platform", "host", "database", "username"],
      "additionalProperties": false,
      "properties": {
        "platform": {"type": "string"},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "database": {"type": "string"},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "sslmode": {"type": "string"}
      }
    },
    "audit": {
      "type": "object",
      "required": ["host", "database", "username"],
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "database": {"type": "string"},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "sslmode": {"type": "string"}
      }
    },
    "sweep": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "interval": {"type": "integer", "minimum": 1},
        "initial-delay": {"type": "integer", "minimum": 0}
      }
    },
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "addr": {"type": "string"}
      }
    }
  }
}`
