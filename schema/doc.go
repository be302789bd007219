// Package schema provides protocol schema compilation and document validation
// for the protoreg registry.
//
// A raw schema document names a protocol, its transport binding and default
// port, and an ordered set of field definitions. Any field may instead be a
// reference to another protocol's schema:
//
//	{
//	  "protocol": "http",
//	  "transport": "TCP",
//	  "port": 80,
//	  "fields": {
//	    "host":     {"type": "string", "minLength": 1},
//	    "path":     {"type": "string", "default": "/"},
//	    "resolver": {"$ref": "DNS", "optional": true}
//	  }
//	}
//
// Key features:
//   - Tagged node variant: literal, object or reference
//   - Dependency-ordered compilation with cycle detection
//   - Shared compiled schemas for references, never copied
//   - Fail-slow validation with ordered, path-qualified errors
//   - Explicit strict mode for unknown fields (enabled by default)
//   - Default filling through Normalize
//   - JSON Schema draft-07 export
//
// Basic usage:
//
//	raw, err := schema.ParseDocument(obj)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	compiled, err := schema.NewCompiler().Compile(raw, store.Get)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := schema.NewValidator().Validate(compiled, document)
//	if !result.Valid {
//	    for _, e := range result.Errors {
//	        log.Printf("%s: %s", e.Field(), e.Message)
//	    }
//	}
//
// Every compiled schema starts with two implicit optional fields, transport
// (TCP or UDP) and port (0-65535), defaulting to the protocol definition.
// Declared fields are required unless marked optional or given a default.
//
// Compiled schemas are immutable and safe for concurrent validation.
package schema
