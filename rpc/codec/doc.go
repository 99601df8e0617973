// Package codec implements the length-prefixed frame format spoken by the
// automation drivers. It performs no I/O on sockets, it only converts between
// arguments and bytes.
//
// Request frame (text):
//
//	{len-0}/{len-1}/.../{len-n}\n{body-0}{body-1}...{body-n}
//
// Push frame (binary file transfer):
//
//	{len(tag)}/{len(path)}/{len(payload)}\n{tag}{path}{payload}
//
// Response frame:
//
//	{len}/{body}
//
// Every length is a decimal byte length. Bodies are concatenated without
// separators, boundaries are derived from the declared lengths only. This is
// why arguments may contain '/' and '\n' without any escaping.
package codec
