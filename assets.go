// Package jobshield provides embedded assets for production builds.
package jobshield

import _ "embed"

// DefaultRuleTable is the rule table shipped with the binary. Deployments
// that set RULE_TABLE_PATH override it with a file on disk.
//
//go:embed assets/rule_table.json
var DefaultRuleTable []byte
