// Package player keeps the separated stems of one job playing in lockstep.
//
// A [Session] owns one [Handle] per present stem and moves through four states:
//
//	Idle ──Play──▶ Playing ──Pause/Stop──▶ Paused ──Play──▶ Playing
//	                  │
//	                  └──every handle ended──▶ Finished
//
// Every Play seeks all handles to the shared playhead before starting them, so stems that
// drifted apart while paused line up again. While playing, the playhead follows the reference
// stem (vocals unless absent).
//
// Completion is tracked with a set of ended stems: the session enters Finished exactly when the
// set covers every open handle, releases the handles and asks the [Cleaner] to delete the
// server-side files. [Session.Close] performs the same teardown from any state; the deletion
// request is issued at most once per session and its failure is only logged.
//
// [BeepOpener] produces handles backed by faiface/beep streamers mixed through the shared speaker.
package player
