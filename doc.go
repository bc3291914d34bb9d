// Package portal implements a session-authenticated member portal:
// registration, login with brute-force lockout, role-based access
// control, and self-service profile management.
//
// The core is the login state machine in Authenticator: credential
// verification, atomic failed-attempt tracking, account locking, and
// the session snapshot handed to the guards. Persistence sits behind
// UserStore (bun/sqlite in production, in-memory in tests), sessions
// behind SessionManager, and the HTTP surface is a thin fiber layer
// that recovers domain errors into form re-renders.
package portal
