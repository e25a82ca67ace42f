package schema

import _ "embed"

//go:embed release-config.schema.json
var ReleaseConfigSchema []byte
