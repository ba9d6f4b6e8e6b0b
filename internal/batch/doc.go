// Package batch runs a detector over every entry of a folder.
//
// The Runner opens the folder before anything else, so a bad path fails the
// run without constructing a detector. It then creates the detector and one
// set of output buffers per worker, hands each directory entry to a
// Processor, and renders a Summary at the end.
//
// Only initialization failures (folder, output folder, detector, buffers)
// abort a run. Load, detect, draw and save failures are recorded against the
// file and the batch moves on to the next entry.
package batch
