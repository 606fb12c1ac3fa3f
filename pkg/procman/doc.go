// Package procman owns the map of named persistent tool sessions. It
// is the sole mutator of session state: each session exclusively owns
// one OS process and its streams, and no other component touches them.
//
// Operations against different tool names proceed fully in parallel;
// operations against the same name are mutually exclusive, because a
// single pipe cannot multiplex two in-flight command frames. Within one
// session, command frames are strictly FIFO.
package procman
