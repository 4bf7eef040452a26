// Package transform is the engine-side client for filters hosted by another
// refinery instance. A Remote wraps a Client so a pipeline stage can treat a
// remote filter exactly like a local one.
package transform
