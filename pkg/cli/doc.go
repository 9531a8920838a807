// Package cli implements subledger-cli, the operator command line for a
// running subledger server.
//
// Commands are built with cobra and talk to the HTTP API through Client:
//
//	subledger-cli simulate [--subscription id] [--max-subscriptions n] [--max-periods n] [--dry-run]
//	subledger-cli subscription get|cancel|reactivate <id>
//	subledger-cli plan get <id> [--currency BRL]
//
// Results print as indented JSON, or YAML with -o yaml. API errors surface as
// *APIError carrying the HTTP status and the server's message.
package cli
