// Package schemas embeds the JSON Schemas for spec and claim files.
package schemas

import _ "embed"

//go:embed spec.schema.json
var SpecSchemaJSON string

//go:embed claim.schema.json
var ClaimSchemaJSON string
