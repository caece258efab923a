// Package project runs a function as a Coretex experiment.
//
// Run is the entry point of a project executed on a Coretex Node: it
// loads the experiment, points logging at the experiment's log file,
// reports progress to the platform and translates the outcome of the
// project function into a final experiment status.
package project
