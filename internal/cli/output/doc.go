// Package output renders trainmesh-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: key/value and row tables on text/tabwriter
//   - json.go: indented JSON
//   - yaml.go: YAML through the koanf yaml parser
package output
