// Package cluster carries the membership metadata and HTTP plumbing the
// partition processes share: the MemberInfo record served by
// /cluster/members, the PostJSON/GetJSON helpers every HTTP exchange in
// this module goes through, and the Heartbeater that turns periodic
// /health probes into the heartbeat stream the failure detector's
// timeout logic consumes.
//
// There is no coordinator here. Every partition is an equal-rank peer:
// each process runs its own Heartbeater over the same member list and
// forms its own view of peer health. Two processes can briefly disagree
// about a third's status; the recovery coordinator tolerates that, since
// recovery is always driven by the process that observed the failure.
package cluster
