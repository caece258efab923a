// Package promote implements branch promotion along the fixed chain
//
//	develop → stage → main
//
// A promotion is authorized against an allowed actor or the repository
// owner, its destination is validated against the options declared by the
// workflow definition, and only then are git commands executed: stage is
// rebased onto develop and force-pushed, and for destination "main" main is
// additionally rebased onto the new stage and force-pushed. The first
// failing git command aborts the run; nothing is retried or rolled back.
package promote
