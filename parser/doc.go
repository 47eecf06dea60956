// Package parser maps RawEnvelopes to entity records using a fixed routing
// table on the path segments:
//
//	node[.<name>]                                          node
//	node.*.interface[.status|.statistics|.<leaf>]          interface
//	node.*.interface.*.subinterface.(ipv4|ipv6).address    address
//
// Every entry yields one Result holding either a record or a *ParseError.
// Errors never abort sibling entries; a malformed CIDR in the second entry
// still lets the first and third produce records.
//
// The parser performs no I/O. Record timestamps and batch IDs come from the
// injected clock and ID generator, so parsing the same envelope with the same
// options yields identical records.
package parser
