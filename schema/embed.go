package schema

import _ "embed"

// ThreadsV1Schema contains the JSON schema for thread manifests.
//
//go:embed threads.v1.json
var ThreadsV1Schema []byte
