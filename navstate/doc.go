// Package navstate keeps the active search term and the content scroll
// offset in step with the navigation history.
//
// Two tiers hold search state. The session tier ([storage.Store]) keeps the
// last term for the tab session under [storage.SearchValueKey]. Each history
// entry carries an [EntryState] with the search address and the scroll
// offset of the content area, so back/forward navigation restores the term
// and position that belonged to that entry even after the session tier was
// overwritten by a later search.
//
// A [Sync] is the state machine tying both tiers to the page: it reacts to
// input, scroll, click, popstate, load and Escape events, drives the
// highlighter and re-runs the search pipeline. The browser surfaces it needs
// are small interfaces ([History], [Viewport], [FrameScheduler], [Focus]);
// [MemoryHistory], [MemoryViewport] and [FrameQueue] are headless
// implementations.
package navstate
