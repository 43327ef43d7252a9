// Package batch analyzes one content item at several filter levels with a
// single subtitle download.
//
// Levels already stored with a local artifact are returned from the store
// without touching the network. The remaining levels share one fetch and one
// parse, then annotate and persist concurrently. A level that fails is logged
// and left out of the result; the call fails only when no level succeeds.
package batch
