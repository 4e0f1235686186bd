// Package defaults provides the embedded example configuration written
// by the reactor init subcommand.
package defaults

import _ "embed"

//go:generate cp ../../examples/config.example.yaml .

//go:embed config.example.yaml
var ConfigYAML []byte
