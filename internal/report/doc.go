// Package report renders allocation results into the files a hardware
// designer hands on: pin usage and wiring tables, a bill of materials, JSON
// documents and a zip bundle of all of them.
//
// CSV output follows encoding/csv quoting: cells containing a quote, comma,
// CR or LF are quoted and embedded quotes are doubled.
package report
