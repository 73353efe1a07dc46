// Package auth provides the session and capability layer of the job
// marketplace client: who is signed in, what role they hold, and which
// screens and actions that role may reach.
//
// Session lifecycle:
//   - SessionStore owns the token and canonical Identity. It persists both
//     through a Storage (see the storage package) and is Loading until the
//     first Load or Hydrate resolves it.
//   - AuthOrchestrator runs login, signup, third-party sign in, hydration and
//     logout. Results are committed in order; a sign out always wins over a
//     sign in still in flight, and a hydrate never overwrites a session that
//     a newer operation already resolved.
//
// Capability gating:
//   - RouteGuard maps a path plus SessionState to a Decision (render, suspend
//     or redirect) using the RouteTable and each Role's dashboard root.
//   - VerificationGate decides whether a recruiter may publish jobs and
//     handles legal document submission.
//   - ApplicationWorkflow applies recruiter status changes to job
//     applications under a TransitionPolicy, with before and after hooks.
//
// Activity sinks:
//   - ActivitySink receives audit events for sign in, verification and
//     application changes. Sinks run best-effort (errors are logged). The
//     activitymap and storage packages normalize and persist them.
package auth
