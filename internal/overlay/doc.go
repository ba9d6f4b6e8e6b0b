// Package overlay burns detection results into an image.
//
// A detector reports its boxes grouped by class. Partition splits that list
// into maximal runs of one class, and Canvas.DrawBoxes draws one run at a time
// in the class color. Drawing happens on an 8-bit copy of the float image;
// Canvas.Sync writes it back before the image is saved.
package overlay
