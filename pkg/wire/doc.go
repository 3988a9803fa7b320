// Package wire implements the chatwire streaming protocol: a newline-delimited
// framing that multiplexes heterogeneous chat events onto one ordered byte
// stream.
//
// Each event occupies exactly one line of the form
//
//	<tag>:<json-payload>\n
//
// where the tag is a single character from a closed enumeration and the
// payload is JSON encoded (and therefore never contains a raw newline).
// The tag set:
//
//	0  text-delta          JSON string
//	2  data                JSON array, each element appended to side data
//	3  error               JSON string (message)
//	7  annotation          single JSON value
//	8  message-annotation  JSON array of values
//	9  tool-call           {"toolCallId","toolName","args"}
//	a  tool-result         {"toolCallId","result"}
//	c  tool-call-delta     {"toolCallId","toolName","argsTextDelta"}
//	d  finish              {"finishReason","usage"}
//	e  step-finish         {"finishReason","usage","isContinued"}
//
// Chunks form a closed sum type: the Chunk interface is sealed and every
// variant is a struct in this package, decoded by exhaustive matching.
// A line with an unrecognized tag decodes to an Unknown chunk together with
// a DecodeError so that callers can choose between strictness and the
// skip-and-log behavior the Decoder applies by default.
//
// Decoder consumes an io.Reader delivering bytes at arbitrary boundaries and
// yields chunks in arrival order, holding back a trailing partial line until
// its newline arrives. A leftover fragment at end of stream is discarded:
// a bare trailing partial line marks an aborted or truncated stream, not a
// protocol violation.
//
// Servers opt into a degenerate plain-text mode in which the whole response
// body is one untagged running text delta; TextDecoder adapts such a body to
// the same Stream interface. The mode is negotiated out of band and is not
// self-describing in the bytes.
package wire
