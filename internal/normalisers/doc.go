// Package normalisers maps decoded upstream records into the canonical
// record shape. Each record kind has its own normaliser; the Registry
// dispatches on RawItem.Kind and falls back to the property normaliser.
//
// Normalisers are registered with the Registry at startup.
package normalisers
