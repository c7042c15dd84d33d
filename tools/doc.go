// Package tools maps named remote operations to bridge submissions.
//
// Each Definition carries a validator for its JSON arguments; Call validates
// the arguments, submits the request to the bridge, and awaits the outcome.
// The built-in catalog covers the document operations the remote plugin
// executes: tree and node inspection, property mutation, node lifecycle,
// script execution, and asset export.
package tools
