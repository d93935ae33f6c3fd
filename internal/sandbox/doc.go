/*
Package sandbox runs composed preview documents inside an isolated goja
JavaScript interpreter.

# Overview

Every call to Runtime.Run creates a fresh interpreter: one render, one
incarnation. Nothing survives between runs, so replacing a preview discards
its globals, pending timers and any messages it had not posted yet.

The interpreter sees a browser-shaped environment:

  - window (the global object) with addEventListener for "error"
  - parent.postMessage, the only way out of the sandbox
  - console with log, warn, error, info and debug
  - setTimeout, setInterval and their clear functions, run on virtual time
  - document, a small DOM backed by the parsed markup

Scripts run in document order. An exception escaping a script block fires
the window error event and the next block still runs.

# Messages

parent.postMessage copies its argument by value (JSON) and hands the bytes
to the host's post callback. The sandbox never filters; that is the
receiver's job.

# Limits

  - Timeout: wall-clock budget for the whole run
  - MaxCallStackSize: recursion depth
  - MaxTimers: timer callbacks fired per run, bounding setInterval loops

Context cancellation interrupts the interpreter immediately.
*/
package sandbox
