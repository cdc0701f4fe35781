// Package history persists observed routing-block changes.
//
// Every genuine change to one of the four input routing blocks, whether
// caused by a toggle from this service or by someone turning the encoder
// on the console surface, is appended here. The log answers "when did
// the inputs flip and to what" after the fact, which matters in a studio
// where several people can reach the console.
package history
