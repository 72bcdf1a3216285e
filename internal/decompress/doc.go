// Package decompress turns a compressed source file into a live byte stream.
//
// ProcessOpener spawns one external process per file (gunzip -c <path> by
// default) and exposes its standard output. The returned stream owns the
// child: reading to EOF reaps it and converts an abnormal exit into an error,
// and Close always releases it, killing it if the consumer stopped early.
//
// BuiltinOpener decompresses in-process with klauspost/compress, choosing the
// codec from the file extension.
package decompress
