// Package frame turns the raw serial byte stream into discrete,
// classified frames.
//
// A Reader buffers partial reads and splits the stream on line
// delimiters, so a CRLF that straddles two transport reads never loses
// or duplicates bytes. Classify then tags each frame as a command
// reply, an unsolicited radio payload, or noise, driven by a Grammar
// value describing the module's reply and data shapes.
package frame
