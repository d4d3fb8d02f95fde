// Package alerts implements rule validation and the evaluation engine.
// The engine reads recent metric windows, applies duration-debounced
// threshold logic, and drives the firing/resolved lifecycle of alert
// events, handing fired and resolved events to a Dispatcher.
package alerts
