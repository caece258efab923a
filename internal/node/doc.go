// Package node manages the lifecycle of a Coretex Node: the container
// that executes experiments for an organization on this machine.
//
// Manager drives the container through a docker.Client (or any Engine).
// Configuration helpers fill and validate the node section of config.Config,
// and Cron schedules the periodic `coretex node update --auto` job.
package node
